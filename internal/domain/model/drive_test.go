package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSectionSequenceEndsWithDone(t *testing.T) {
	drive := &MockDrive{Sections: []Section{SectionAptitude, SectionMachineTest, SectionInterview}}

	assert.Equal(t,
		[]Section{SectionAptitude, SectionMachineTest, SectionInterview, SectionDone},
		drive.SectionSequence())
}

func TestEncodeDecodeSections(t *testing.T) {
	sections := []Section{SectionAptitude, SectionMachineTest}

	encoded := EncodeSections(sections)
	assert.Equal(t, "Aptitude,MachineTest", encoded)
	assert.Equal(t, sections, DecodeSections(encoded))

	assert.Nil(t, DecodeSections(""))
}

func TestAttemptOverdue(t *testing.T) {
	started := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	attempt := &Attempt{Status: AttemptInProgress, StartedAt: started}
	duration := 30 * time.Minute

	assert.False(t, attempt.Overdue(started.Add(29*time.Minute), duration))
	assert.True(t, attempt.Overdue(started.Add(31*time.Minute), duration))

	attempt.Status = AttemptCompleted
	assert.False(t, attempt.Overdue(started.Add(31*time.Minute), duration), "terminal attempts never expire")
}

func TestValidSection(t *testing.T) {
	assert.True(t, ValidSection(SectionAptitude))
	assert.True(t, ValidSection(SectionInterview))
	assert.False(t, ValidSection(SectionDone))
	assert.False(t, ValidSection("Breakdancing"))
}

package scheduling

import (
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/examtable/internal/models"
)

// Slot is a fixed daily sitting used when exams are moved automatically.
type Slot struct {
	Start models.Clock
	End   models.Clock
}

func (s Slot) Minutes() int {
	return int(s.End - s.Start)
}

func (s Slot) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// ParseSlot reads a "HH:MM-HH:MM" window.
func ParseSlot(s string) (Slot, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return Slot{}, fmt.Errorf("invalid slot %q, use HH:MM-HH:MM", s)
	}
	from, err := models.ParseClock(start)
	if err != nil {
		return Slot{}, err
	}
	to, err := models.ParseClock(end)
	if err != nil {
		return Slot{}, err
	}
	if from >= to {
		return Slot{}, fmt.Errorf("slot %q ends before it starts", s)
	}
	return Slot{Start: from, End: to}, nil
}

// DefaultSlots are the morning and afternoon sittings, tried in order.
var DefaultSlots = []Slot{
	{Start: models.NewClock(9, 30), End: models.NewClock(11, 0)},
	{Start: models.NewClock(13, 30), End: models.NewClock(15, 0)},
}

// Allocator tests canonical slots against a stability set of exams that
// are already placed.
type Allocator struct {
	Slots []Slot
}

func NewAllocator(slots []Slot) Allocator {
	if len(slots) == 0 {
		slots = DefaultSlots
	}
	return Allocator{Slots: slots}
}

// Viable reports whether the domain still has room on date.
func (a Allocator) Viable(stable []models.Exam, date models.Date, domain Domain) bool {
	return DayLoad(stable, DayKey{Date: date, Domain: domain}) < MaxExamsPerDay
}

// Free reports whether no stable exam of the same semester sits in slot on
// date. Department and type are ignored: a semester's students cannot sit
// two exams at once whatever the subject.
func (a Allocator) Free(stable []models.Exam, semester int, date models.Date, slot Slot) bool {
	for i := range stable {
		e := &stable[i]
		if e.Semester != semester || e.ExamDate != date {
			continue
		}
		if e.StartTime < slot.End && slot.Start < e.EndTime {
			return false
		}
	}
	return true
}

// Place returns the first free slot for exam on date, or false when the
// date is full for its domain or every slot is taken.
func (a Allocator) Place(stable []models.Exam, exam *models.Exam, date models.Date) (Slot, bool) {
	if !a.Viable(stable, date, DomainOf(exam)) {
		return Slot{}, false
	}
	for _, slot := range a.Slots {
		if a.Free(stable, exam.Semester, date, slot) {
			return slot, true
		}
	}
	return Slot{}, false
}

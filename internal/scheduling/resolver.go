package scheduling

import (
	"cmp"
	"slices"

	"github.com/shrimpsizemoose/examtable/internal/models"
)

// DefaultSearchDays bounds how far forward a conflicting exam may move.
const DefaultSearchDays = 30

// Resolver relocates conflicting DRAFT exams into free canonical slots.
// It keeps no state between calls.
type Resolver struct {
	Allocator  Allocator
	SearchDays int
}

func NewResolver(slots []Slot, searchDays int) *Resolver {
	if searchDays <= 0 {
		searchDays = DefaultSearchDays
	}
	return &Resolver{
		Allocator:  NewAllocator(slots),
		SearchDays: searchDays,
	}
}

// Resolution is the outcome of one pass. Moved holds the relocated exams
// with their new date and slot; Unplaced holds queued exams for which the
// search window was exhausted, left untouched.
type Resolution struct {
	Stable   []models.Exam
	Moved    []models.Exam
	Unplaced []models.Exam
}

// pass is handed from partition to reschedule.
type pass struct {
	stable []models.Exam
	queue  []models.Exam
}

// Resolve runs a single sequential pass over exams. Placement decisions
// depend on earlier placements, so it must not be parallelised.
func (r *Resolver) Resolve(exams []models.Exam) Resolution {
	return r.reschedule(r.partition(order(exams)))
}

// order drops DELETED exams and sorts PUBLISHED before DRAFT, then by date
// and start time, so that anchors are seen first.
func order(exams []models.Exam) []models.Exam {
	out := make([]models.Exam, 0, len(exams))
	for _, e := range exams {
		if !e.IsDeleted() {
			out = append(out, e)
		}
	}
	rank := func(e models.Exam) int {
		if e.Status == models.StatusPublished {
			return 0
		}
		return 1
	}
	slices.SortStableFunc(out, func(a, b models.Exam) int {
		return cmp.Or(
			cmp.Compare(rank(a), rank(b)),
			a.ExamDate.Compare(b.ExamDate),
			cmp.Compare(a.StartTime, b.StartTime),
		)
	})
	return out
}

func (r *Resolver) partition(ordered []models.Exam) pass {
	var p pass
	for _, candidate := range ordered {
		if r.clashes(p.stable, &candidate) && candidate.Status == models.StatusDraft {
			p.queue = append(p.queue, candidate)
			continue
		}
		// published exams anchor the set even when they clash
		p.stable = append(p.stable, candidate)
	}
	return p
}

// clashes reports a full day for the candidate's domain or a time overlap
// with any stable exam of the same semester.
func (r *Resolver) clashes(stable []models.Exam, candidate *models.Exam) bool {
	if DayLoad(stable, DayKeyOf(candidate)) >= MaxExamsPerDay {
		return true
	}
	for i := range stable {
		if stable[i].Semester == candidate.Semester && candidate.Overlaps(&stable[i]) {
			return true
		}
	}
	return false
}

func (r *Resolver) reschedule(p pass) Resolution {
	res := Resolution{Stable: slices.Clone(p.stable)}

	for _, exam := range p.queue {
		placed := false
		for offset := 0; offset < r.SearchDays && !placed; offset++ {
			date := exam.ExamDate.AddDays(offset)
			slot, ok := r.Allocator.Place(res.Stable, &exam, date)
			if !ok {
				continue
			}
			exam.ExamDate = date
			exam.StartTime = slot.Start
			exam.EndTime = slot.End
			exam.DurationMinutes = slot.Minutes()

			res.Stable = append(res.Stable, exam)
			res.Moved = append(res.Moved, exam)
			placed = true
		}
		if !placed {
			res.Unplaced = append(res.Unplaced, exam)
		}
	}

	return res
}

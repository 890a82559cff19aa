package ledger

import (
	"strings"

	"github.com/anjiri1684/tuition_billing/matching"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BatchCache memoizes the lookups one import repeats for every row of the
// same student. Create one per import and drop it when the import ends; it is
// not safe for concurrent use.
type BatchCache struct {
	db          *gorm.DB
	byCarnet    map[string]*models.Student
	byID        map[uuid.UUID]*models.Student
	enrollments map[uuid.UUID][]models.Enrollment
	pending     map[uuid.UUID][]models.Installment
}

func NewBatchCache(db *gorm.DB) *BatchCache {
	c := &BatchCache{db: db}
	c.Reset()
	return c
}

// Reset empties the cache.
func (c *BatchCache) Reset() {
	c.byCarnet = make(map[string]*models.Student)
	c.byID = make(map[uuid.UUID]*models.Student)
	c.enrollments = make(map[uuid.UUID][]models.Enrollment)
	c.pending = make(map[uuid.UUID][]models.Installment)
}

// StudentByCarnet returns the student with the given carnet, or nil when
// there is none.
func (c *BatchCache) StudentByCarnet(carnet string) (*models.Student, error) {
	key := strings.ToUpper(strings.TrimSpace(carnet))
	if s, ok := c.byCarnet[key]; ok {
		return s, nil
	}
	var students []models.Student
	if err := c.db.Where("UPPER(carnet) = ?", key).Limit(1).Find(&students).Error; err != nil {
		return nil, err
	}
	var s *models.Student
	if len(students) > 0 {
		s = &students[0]
		c.byID[s.ID] = s
	}
	c.byCarnet[key] = s
	return s, nil
}

func (c *BatchCache) StudentByID(id uuid.UUID) (*models.Student, error) {
	if s, ok := c.byID[id]; ok {
		return s, nil
	}
	var students []models.Student
	if err := c.db.Where("id = ?", id).Limit(1).Find(&students).Error; err != nil {
		return nil, err
	}
	var s *models.Student
	if len(students) > 0 {
		s = &students[0]
		c.byCarnet[strings.ToUpper(s.Carnet)] = s
	}
	c.byID[id] = s
	return s, nil
}

// ActiveEnrollments returns the student's active enrollments, newest first.
func (c *BatchCache) ActiveEnrollments(studentID uuid.UUID) ([]models.Enrollment, error) {
	if list, ok := c.enrollments[studentID]; ok {
		return list, nil
	}
	var list []models.Enrollment
	if err := c.db.Where("student_id = ? AND status = ?", studentID, models.EnrollmentActive).
		Order("created_at desc").
		Find(&list).Error; err != nil {
		return nil, err
	}
	c.enrollments[studentID] = list
	return list, nil
}

// Pending returns the enrollment's pending installments by due date.
func (c *BatchCache) Pending(enrollmentID uuid.UUID) ([]models.Installment, error) {
	if list, ok := c.pending[enrollmentID]; ok {
		return list, nil
	}
	var list []models.Installment
	if err := c.db.Where("enrollment_id = ? AND status = ?", enrollmentID, models.InstallmentPending).
		Order("due_date asc, sequence_number asc").
		Find(&list).Error; err != nil {
		return nil, err
	}
	c.pending[enrollmentID] = list
	return list, nil
}

// Candidates pairs each active enrollment of the student with its pending
// installments for enrollment disambiguation.
func (c *BatchCache) Candidates(studentID uuid.UUID) ([]matching.Candidate, error) {
	enrollments, err := c.ActiveEnrollments(studentID)
	if err != nil {
		return nil, err
	}
	candidates := make([]matching.Candidate, 0, len(enrollments))
	for _, e := range enrollments {
		pending, err := c.Pending(e.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, matching.Candidate{Enrollment: e, Pending: pending})
	}
	return candidates, nil
}

// MarkPaid drops a settled installment from the cached pending list.
func (c *BatchCache) MarkPaid(enrollmentID, installmentID uuid.UUID) {
	list, ok := c.pending[enrollmentID]
	if !ok {
		return
	}
	kept := list[:0:0]
	for _, inst := range list {
		if inst.ID != installmentID {
			kept = append(kept, inst)
		}
	}
	c.pending[enrollmentID] = kept
}

// Invalidate forgets the pending installments of an enrollment so the next
// lookup reads them again.
func (c *BatchCache) Invalidate(enrollmentID uuid.UUID) {
	delete(c.pending, enrollmentID)
}

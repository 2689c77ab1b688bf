package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/coursora/coursora-go-api/internal/models"
)

// CourseRepository resolves catalog rows owned by the CRUD layer. The
// analytics side only needs the course -> category mapping.
type CourseRepository interface {
	CategoryNamesByCourse(ctx context.Context) (map[string]string, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs the course lookup repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

type courseCategoryRow struct {
	CourseID     string
	CategoryName string
}

func (r *courseRepository) CategoryNamesByCourse(ctx context.Context) (map[string]string, error) {
	var rows []courseCategoryRow
	err := r.db.WithContext(ctx).
		Model(&models.Course{}).
		Select("courses.id AS course_id, categories.name AS category_name").
		Joins("JOIN categories ON categories.id = courses.category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]string, len(rows))
	for _, row := range rows {
		mapping[row.CourseID] = row.CategoryName
	}

	return mapping, nil
}

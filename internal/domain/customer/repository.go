package customer

import (
	"context"
	"fmt"
	"math"

	"customer-service/internal/pkg/apperrors"
)

var (
	ErrNotFound = fmt.Errorf("customer %w", apperrors.ErrNotFound)

	ErrAlreadyExists = fmt.Errorf("customer %w", apperrors.ErrAlreadyExists)
)

// Filter narrows a listing. A nil Name or Phone matches every record;
// a set one matches by case-insensitive substring. Status is matched exactly.
type Filter struct {
	Name   *string
	Phone  *string
	Status Status
}

// PageRequest addresses a zero-based page of Size records.
type PageRequest struct {
	Page int
	Size int
}

// MaxPage is the largest page index whose offset still fits in an int.
func MaxPage(size int) int {
	if size <= 0 {
		return 0
	}
	return math.MaxInt / size
}

// Valid reports whether the request addresses a page that can be offset into.
func (p PageRequest) Valid() bool {
	return p.Page >= 0 && p.Size > 0 && p.Page <= MaxPage(p.Size)
}

// Offset is only meaningful for a Valid request.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

type Page struct {
	Content       []*Customer
	Number        int
	Size          int
	TotalElements int64
}

func (p *Page) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	pages := int(p.TotalElements / int64(p.Size))
	if p.TotalElements%int64(p.Size) > 0 {
		pages++
	}
	return pages
}

type CustomerRepository interface {
	Insert(ctx context.Context, customer *Customer) error

	Update(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	FindByNameAndStatus(ctx context.Context, name string, status Status) (*Customer, error)

	FindByNameAndStatusExcludingID(ctx context.Context, name string, status Status, excludeID int64) (*Customer, error)

	FindAll(ctx context.Context, filter Filter, page PageRequest) (*Page, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

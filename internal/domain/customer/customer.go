package customer

import (
	"fmt"
	"strings"
	"time"

	"customer-service/internal/pkg/apperrors"
)

// Status is the lifecycle state of a customer record.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRemoved Status = "REMOVED"
)

// Statuses lists every lifecycle state in declaration order.
var Statuses = []Status{StatusActive, StatusRemoved}

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusRemoved
}

// ParseStatus accepts a status name in any letter case.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q, expected one of ACTIVE, REMOVED", raw))
	}
	return status, nil
}

type Customer struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Status      Status     `json:"status"`
	CreatedTime time.Time  `json:"createdTime"`
	UpdatedTime *time.Time `json:"updatedTime"`
}

func NewCustomer(name, phone string, now time.Time) *Customer {
	return &Customer{
		Name:        name,
		Phone:       phone,
		Status:      StatusActive,
		CreatedTime: now,
		UpdatedTime: nil,
	}
}

func (c *Customer) IsActive() bool {
	return c.Status == StatusActive
}

// ChangeDetails overwrites name and phone. Status is left as is.
func (c *Customer) ChangeDetails(name, phone string, now time.Time) {
	c.Name = name
	c.Phone = phone
	c.touch(now)
}

// Remove moves the customer to the terminal REMOVED state. It reports
// false when the customer was already removed.
func (c *Customer) Remove(now time.Time) bool {
	if !c.IsActive() {
		return false
	}
	c.Status = StatusRemoved
	c.touch(now)
	return true
}

func (c *Customer) touch(now time.Time) {
	c.UpdatedTime = &now
}

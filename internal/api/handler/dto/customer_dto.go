package dto

import (
	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"
	"strings"
	"time"
)

type CreateCustomerRequest struct {
	Name  string `json:"name" example:"Jane Doe"`
	Phone string `json:"phone" example:"+62-811-0000-111"`
}

func (r *CreateCustomerRequest) Validate() error {
	return validateDetails(r.Name, r.Phone)
}

type UpdateCustomerRequest struct {
	Name  string `json:"name" example:"Jane Doe"`
	Phone string `json:"phone" example:"+62-811-0000-222"`
}

func (r *UpdateCustomerRequest) Validate() error {
	return validateDetails(r.Name, r.Phone)
}

func validateDetails(name, phone string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.NewValidationError("name", "name cannot be empty")
	}
	if strings.TrimSpace(phone) == "" {
		return apperrors.NewValidationError("phone", "phone cannot be empty")
	}
	return nil
}

type CustomerResponse struct {
	ID          int64      `json:"id" example:"1"`
	Name        string     `json:"name" example:"Jane Doe"`
	Phone       string     `json:"phone" example:"+62-811-0000-111"`
	Status      string     `json:"status" example:"ACTIVE" enums:"ACTIVE,REMOVED"`
	CreatedTime time.Time  `json:"createdTime" example:"2024-05-01T10:00:00Z"`
	UpdatedTime *time.Time `json:"updatedTime" example:"2024-05-02T08:30:00Z"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{}
	}

	resp := CustomerResponse{
		ID:          cust.ID,
		Name:        cust.Name,
		Phone:       cust.Phone,
		Status:      cust.Status.String(),
		CreatedTime: cust.CreatedTime.UTC(),
	}
	if cust.UpdatedTime != nil {
		updated := cust.UpdatedTime.UTC()
		resp.UpdatedTime = &updated
	}
	return resp
}

type CustomerPageResponse struct {
	Content       []CustomerResponse `json:"content"`
	Page          int                `json:"page" example:"0"`
	Size          int                `json:"size" example:"20"`
	TotalElements int64              `json:"totalElements" example:"42"`
	TotalPages    int                `json:"totalPages" example:"3"`
}

func NewCustomerPageResponse(page *customer.Page) CustomerPageResponse {
	if page == nil {
		return CustomerPageResponse{Content: []CustomerResponse{}}
	}

	content := make([]CustomerResponse, 0, len(page.Content))
	for _, cust := range page.Content {
		content = append(content, NewCustomerResponse(cust))
	}
	return CustomerPageResponse{
		Content:       content,
		Page:          page.Number,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages(),
	}
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username" example:"ops-admin"`
}

type TokenResponse struct {
	Token     string    `json:"token" example:"Bearer eyJhbGciOiJIUzI1NiIs..."`
	ExpiresAt time.Time `json:"expiresAt"`
}

package dto

import (
	"time"

	"github.com/makkenzo/email-gateway-api/internal/mail"
)

type SendEmailRequest struct {
	ReceiverEmail string `json:"receiver_email" binding:"required,email"`
	Subject       string `json:"subject" binding:"required,min=1,max=200"`
	Body          string `json:"body" binding:"required,min=1,max=50000"`
}

type ListEmailsQuery struct {
	FilterBy   string     `form:"filter_by,default=today" binding:"omitempty,oneof=today all date_range"`
	StartDate  *time.Time `form:"start_date" time_format:"2006-01-02"`
	EndDate    *time.Time `form:"end_date" time_format:"2006-01-02"`
	MarkAsRead bool       `form:"mark_as_read,default=false"`
}

type EmailListResponse struct {
	Count  int            `json:"count"`
	Emails []mail.Message `json:"emails"`
}

type BatchEmailRequest struct {
	EmailIDs []string `json:"email_ids" binding:"required,min=1,max=100,dive,required"`
}

type BatchOperationDetail struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type BatchOperationResponse struct {
	Status         string                 `json:"status"`
	TotalProcessed int                    `json:"total_processed"`
	SuccessCount   int                    `json:"success_count"`
	FailureCount   int                    `json:"failure_count"`
	Details        []BatchOperationDetail `json:"details"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

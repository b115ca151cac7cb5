package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceCategory is the fixed set of medical services appointments can be booked under.
type ServiceCategory string

const (
	ServiceCardiology  ServiceCategory = "cardiology"
	ServiceNeurology   ServiceCategory = "neurology"
	ServiceOrthopedics ServiceCategory = "orthopedics"
	ServiceGeneral     ServiceCategory = "general"
	ServiceDermatology ServiceCategory = "dermatology"
)

// Valid reports whether s is one of the known service categories.
func (s ServiceCategory) Valid() bool {
	switch s {
	case ServiceCardiology, ServiceNeurology, ServiceOrthopedics, ServiceGeneral, ServiceDermatology:
		return true
	}
	return false
}

// ConsultationMode determines whether the appointment happens in person or online.
type ConsultationMode string

const (
	ModeInPerson ConsultationMode = "in-person"
	ModeOnline   ConsultationMode = "online"
)

// Valid reports whether m is a known consultation mode.
func (m ConsultationMode) Valid() bool {
	return m == ModeInPerson || m == ModeOnline
}

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// PaymentStatus represents the status of an appointment's payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment is the payment sub-record embedded in an appointment.
// IntentID holds the processor's payment-intent id once one has been created.
type Payment struct {
	Amount   decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount"`
	Status   PaymentStatus   `gorm:"size:20;default:'pending'" json:"status"`
	IntentID string          `gorm:"size:255;index" json:"externalIntentId,omitempty"`
}

// Appointment represents a scheduled consultation with a specialist.
// The slot (SpecialistID, Date, TimeOfDay) may be held by at most one
// non-cancelled appointment.
type Appointment struct {
	BaseModel
	UserID       string            `gorm:"size:36;index" json:"userId"`
	SpecialistID string            `gorm:"size:36;index:idx_appointment_slot" json:"specialistId"`
	Service      ServiceCategory   `gorm:"size:20" json:"service"`
	Date         time.Time         `gorm:"index:idx_appointment_slot" json:"date"`
	TimeOfDay    string            `gorm:"size:16;column:time_of_day;index:idx_appointment_slot" json:"time"`
	Mode         ConsultationMode  `gorm:"size:20" json:"mode"`
	Location     string            `gorm:"size:255" json:"location,omitempty"`
	MeetingLink  string            `gorm:"size:255" json:"meetingLink,omitempty"`
	Reason       string            `gorm:"type:text" json:"reason"`
	Cost         decimal.Decimal   `gorm:"type:decimal(10,2)" json:"cost"`
	Status       AppointmentStatus `gorm:"size:20;default:'pending'" json:"status"`
	Payment      Payment           `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`

	// Relations
	User       User       `gorm:"foreignKey:UserID" json:"-"`
	Specialist Specialist `gorm:"foreignKey:SpecialistID" json:"specialist"`
}

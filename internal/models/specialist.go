package models

// Specialist represents an entry in the specialist directory.
// Rating is derived from reviews and owned by the review aggregator;
// nothing else writes it.
type Specialist struct {
	BaseModel
	Name         string          `gorm:"size:100;not null" json:"name"`
	Title        string          `gorm:"size:100;not null" json:"title"`
	Service      ServiceCategory `gorm:"size:20;index" json:"service"`
	Rating       float64         `gorm:"default:0" json:"rating"`
	Availability string          `gorm:"size:255" json:"availability"`
	Bio          string          `gorm:"type:text" json:"bio"`
	ImageURL     string          `gorm:"size:255" json:"imageUrl,omitempty"`

	// Relations
	Reviews      []Review      `gorm:"foreignKey:SpecialistID" json:"-"`
	Appointments []Appointment `gorm:"foreignKey:SpecialistID" json:"-"`
}

// Review is a single user review of a specialist. The unique index
// enforces at most one review per (specialist, user) pair.
type Review struct {
	BaseModel
	SpecialistID string `gorm:"size:36;uniqueIndex:idx_review_once" json:"specialistId"`
	UserID       string `gorm:"size:36;uniqueIndex:idx_review_once" json:"userId"`
	Rating       int    `gorm:"not null" json:"rating"`
	Comment      string `gorm:"type:text;not null" json:"comment"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

package collections

import (
	"fmt"
	"strings"

	"vitrine/api/internal/docstore"
)

// Document paths, relative to the data directory.
const (
	ContactPath        = "contact.json"
	GalleryPath        = "gallery.json"
	CustomizationsPath = "customizations.json"
	TestimonialsPath   = "testimonials.json"
)

type ContactInfo struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	ShowPhone bool   `json:"showPhone"`
	Address   string `json:"address"`
	Instagram string `json:"instagram"`
	Facebook  string `json:"facebook"`
}

type ContactData struct {
	ContactInfo ContactInfo `json:"contactInfo"`
}

type GalleryImage struct {
	ID           string `json:"id"`
	Src          string `json:"src"`
	Alt          string `json:"alt"`
	Category     string `json:"category"`
	DateAdded    string `json:"dateAdded"`
	DateModified string `json:"dateModified,omitempty"`
}

type GalleryData struct {
	Images     []GalleryImage `json:"images"`
	Categories []string       `json:"categories"`
}

// Validate reports soft problems: duplicate ids and images whose category
// is not declared. Stores accept such documents.
func (g GalleryData) Validate() []string {
	var problems []string
	categories := make(map[string]bool, len(g.Categories))
	for _, category := range g.Categories {
		categories[category] = true
	}
	seen := make(map[string]bool, len(g.Images))
	for _, image := range g.Images {
		if seen[image.ID] {
			problems = append(problems, fmt.Sprintf("duplicate image id %s", image.ID))
		}
		seen[image.ID] = true
		if image.Category != "" && !categories[image.Category] {
			problems = append(problems, fmt.Sprintf("image %s uses unknown category %q", image.ID, image.Category))
		}
	}
	return problems
}

type ImageRef struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

type CustomItem struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	ShortDescription string     `json:"shortDescription"`
	FullDescription  string     `json:"fullDescription"`
	Price            float64    `json:"price"`
	MinQuantity      int        `json:"minQuantity"`
	PriceInfo        string     `json:"priceInfo"`
	Materials        []string   `json:"materials"`
	Dimensions       []string   `json:"dimensions"`
	Images           []ImageRef `json:"images"`
	Examples         []string   `json:"examples"`
	Featured         bool       `json:"featured"`
}

func (c CustomItem) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return docstore.ClientError("validate", "title is required")
	}
	if c.Price < 0 {
		return docstore.ClientError("validate", "price must not be negative")
	}
	if c.MinQuantity < 0 {
		return docstore.ClientError("validate", "minQuantity must not be negative")
	}
	return nil
}

// normalized replaces nil lists with empty ones so they serialize as [].
func (c CustomItem) normalized() CustomItem {
	if c.Materials == nil {
		c.Materials = []string{}
	}
	if c.Dimensions == nil {
		c.Dimensions = []string{}
	}
	if c.Images == nil {
		c.Images = []ImageRef{}
	}
	if c.Examples == nil {
		c.Examples = []string{}
	}
	return c
}

type CustomizationsData struct {
	CustomItems []CustomItem `json:"customItems"`
}

// Testimonial kinds.
const (
	TestimonialText       = "text"
	TestimonialScreenshot = "screenshot"
)

// Testimonial is either a text testimonial (Comment, optional Avatar) or a
// screenshot (ImageURL, optional Caption), selected by Type.
type Testimonial struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	Event        string `json:"event"`
	Rating       int    `json:"rating"`
	DateAdded    string `json:"dateAdded"`
	DateModified string `json:"dateModified,omitempty"`

	Comment string `json:"comment,omitempty"`
	Avatar  string `json:"avatar,omitempty"`

	ImageURL string `json:"imageUrl,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

func (t Testimonial) Validate() error {
	if t.Rating < 1 || t.Rating > 5 {
		return docstore.ClientError("validate", fmt.Sprintf("rating must be between 1 and 5, got %d", t.Rating))
	}
	switch t.Type {
	case TestimonialText:
		if strings.TrimSpace(t.Comment) == "" {
			return docstore.ClientError("validate", "text testimonial needs a comment")
		}
		if t.ImageURL != "" || t.Caption != "" {
			return docstore.ClientError("validate", "text testimonial cannot carry screenshot fields")
		}
	case TestimonialScreenshot:
		if strings.TrimSpace(t.ImageURL) == "" {
			return docstore.ClientError("validate", "screenshot testimonial needs an imageUrl")
		}
		if t.Comment != "" || t.Avatar != "" {
			return docstore.ClientError("validate", "screenshot testimonial cannot carry text fields")
		}
	default:
		return docstore.ClientError("validate", fmt.Sprintf("unknown testimonial type %q", t.Type))
	}
	return nil
}

type TestimonialsData struct {
	Testimonials []Testimonial `json:"testimonials"`
}

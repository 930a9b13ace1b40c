package collections

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"vitrine/api/internal/contentclient"
	"vitrine/api/internal/docstore"
	"vitrine/api/internal/util"
)

func notFound(kind, id string) error {
	return docstore.NotFound("update", fmt.Sprintf("%s %s", kind, id))
}

type ContactHook struct {
	*Hook[ContactData]
}

func NewContact(files contentclient.Files) *ContactHook {
	return &ContactHook{NewHook(files, ContactPath, func() ContactData { return ContactData{} })}
}

func (h *ContactHook) Update(ctx context.Context, info ContactInfo) error {
	return h.Mutate(ctx, "Update contact info", func(doc ContactData) (ContactData, error) {
		doc.ContactInfo = info
		return doc, nil
	})
}

type GalleryHook struct {
	*Hook[GalleryData]
}

func NewGallery(files contentclient.Files) *GalleryHook {
	return &GalleryHook{NewHook(files, GalleryPath, func() GalleryData {
		return GalleryData{Images: []GalleryImage{}, Categories: []string{}}
	})}
}

// AddImage appends image with a new id and date and returns it.
func (h *GalleryHook) AddImage(ctx context.Context, image GalleryImage) (GalleryImage, error) {
	image.ID = util.NewID("")
	image.DateAdded = timestamp()
	image.DateModified = ""
	err := h.Mutate(ctx, "Add gallery image", func(doc GalleryData) (GalleryData, error) {
		doc.Images = append(doc.Images, image)
		return doc, nil
	})
	return image, err
}

func (h *GalleryHook) UpdateImage(ctx context.Context, id string, image GalleryImage) error {
	return h.Mutate(ctx, "Update gallery image", func(doc GalleryData) (GalleryData, error) {
		i := slices.IndexFunc(doc.Images, func(img GalleryImage) bool { return img.ID == id })
		if i < 0 {
			return doc, notFound("image", id)
		}
		image.ID = id
		image.DateAdded = doc.Images[i].DateAdded
		image.DateModified = timestamp()
		doc.Images[i] = image
		return doc, nil
	})
}

func (h *GalleryHook) DeleteImage(ctx context.Context, id string) error {
	return h.Mutate(ctx, "Delete gallery image", func(doc GalleryData) (GalleryData, error) {
		before := len(doc.Images)
		doc.Images = slices.DeleteFunc(doc.Images, func(img GalleryImage) bool { return img.ID == id })
		if len(doc.Images) == before {
			return doc, notFound("image", id)
		}
		return doc, nil
	})
}

func (h *GalleryHook) AddCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return docstore.ClientError("validate", "category name is required")
	}
	return h.Mutate(ctx, "Add gallery category", func(doc GalleryData) (GalleryData, error) {
		if slices.Contains(doc.Categories, name) {
			return doc, docstore.ClientError("validate", fmt.Sprintf("category %q already exists", name))
		}
		doc.Categories = append(doc.Categories, name)
		return doc, nil
	})
}

// DeleteCategory removes a category. Images keep their category value.
func (h *GalleryHook) DeleteCategory(ctx context.Context, name string) error {
	return h.Mutate(ctx, "Delete gallery category", func(doc GalleryData) (GalleryData, error) {
		before := len(doc.Categories)
		doc.Categories = slices.DeleteFunc(doc.Categories, func(c string) bool { return c == name })
		if len(doc.Categories) == before {
			return doc, notFound("category", name)
		}
		return doc, nil
	})
}

type CustomizationsHook struct {
	*Hook[CustomizationsData]
}

func NewCustomizations(files contentclient.Files) *CustomizationsHook {
	return &CustomizationsHook{NewHook(files, CustomizationsPath, func() CustomizationsData {
		return CustomizationsData{CustomItems: []CustomItem{}}
	})}
}

func (h *CustomizationsHook) AddItem(ctx context.Context, item CustomItem) (CustomItem, error) {
	if err := item.Validate(); err != nil {
		return item, err
	}
	item = item.normalized()
	item.ID = util.NewID("")
	err := h.Mutate(ctx, "Add custom item", func(doc CustomizationsData) (CustomizationsData, error) {
		doc.CustomItems = append(doc.CustomItems, item)
		return doc, nil
	})
	return item, err
}

func (h *CustomizationsHook) UpdateItem(ctx context.Context, id string, item CustomItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	item = item.normalized()
	return h.Mutate(ctx, "Update custom item", func(doc CustomizationsData) (CustomizationsData, error) {
		i := slices.IndexFunc(doc.CustomItems, func(c CustomItem) bool { return c.ID == id })
		if i < 0 {
			return doc, notFound("item", id)
		}
		item.ID = id
		doc.CustomItems[i] = item
		return doc, nil
	})
}

func (h *CustomizationsHook) DeleteItem(ctx context.Context, id string) error {
	return h.Mutate(ctx, "Delete custom item", func(doc CustomizationsData) (CustomizationsData, error) {
		before := len(doc.CustomItems)
		doc.CustomItems = slices.DeleteFunc(doc.CustomItems, func(c CustomItem) bool { return c.ID == id })
		if len(doc.CustomItems) == before {
			return doc, notFound("item", id)
		}
		return doc, nil
	})
}

type TestimonialsHook struct {
	*Hook[TestimonialsData]
}

func NewTestimonials(files contentclient.Files) *TestimonialsHook {
	return &TestimonialsHook{NewHook(files, TestimonialsPath, func() TestimonialsData {
		return TestimonialsData{Testimonials: []Testimonial{}}
	})}
}

func (h *TestimonialsHook) Add(ctx context.Context, t Testimonial) (Testimonial, error) {
	if err := t.Validate(); err != nil {
		return t, err
	}
	t.ID = util.NewID("")
	t.DateAdded = timestamp()
	t.DateModified = ""
	err := h.Mutate(ctx, "Add testimonial", func(doc TestimonialsData) (TestimonialsData, error) {
		doc.Testimonials = append(doc.Testimonials, t)
		return doc, nil
	})
	return t, err
}

func (h *TestimonialsHook) Update(ctx context.Context, id string, t Testimonial) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return h.Mutate(ctx, "Update testimonial", func(doc TestimonialsData) (TestimonialsData, error) {
		i := slices.IndexFunc(doc.Testimonials, func(existing Testimonial) bool { return existing.ID == id })
		if i < 0 {
			return doc, notFound("testimonial", id)
		}
		t.ID = id
		t.DateAdded = doc.Testimonials[i].DateAdded
		t.DateModified = timestamp()
		doc.Testimonials[i] = t
		return doc, nil
	})
}

func (h *TestimonialsHook) Delete(ctx context.Context, id string) error {
	return h.Mutate(ctx, "Delete testimonial", func(doc TestimonialsData) (TestimonialsData, error) {
		before := len(doc.Testimonials)
		doc.Testimonials = slices.DeleteFunc(doc.Testimonials, func(existing Testimonial) bool { return existing.ID == id })
		if len(doc.Testimonials) == before {
			return doc, notFound("testimonial", id)
		}
		return doc, nil
	})
}

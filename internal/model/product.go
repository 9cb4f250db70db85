package model

type Specification struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

type Product struct {
	ID               string          `json:"id" yaml:"id"`
	Name             string          `json:"name" yaml:"name"`
	Description      string          `json:"description" yaml:"description"`
	Price            float64         `json:"price" yaml:"price"`
	Image            string          `json:"image" yaml:"image"`
	AdditionalImages []string        `json:"additionalImages,omitempty" yaml:"additional_images"`
	Category         string          `json:"category" yaml:"category"`
	Rating           float64         `json:"rating" yaml:"rating"`
	ReviewCount      int             `json:"reviewCount" yaml:"review_count"`
	IsNew            bool            `json:"isNew,omitempty" yaml:"is_new"`
	Features         []string        `json:"features,omitempty" yaml:"features"`
	Specifications   []Specification `json:"specifications,omitempty" yaml:"specifications"`
}

// ProductQuery carries the listing filters. Zero values disable a filter.
type ProductQuery struct {
	Category string
	MinPrice float64
	MaxPrice float64
	Sort     string
	Search   string
}

type ProductDetail struct {
	Product Product   `json:"product"`
	Related []Product `json:"related"`
}

type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type ProductListResponse struct {
	Category string    `json:"category,omitempty"`
	Total    int       `json:"total"`
	Products []Product `json:"products"`
}

package fara

// Exhibit is a document linked from a foreign principal's detail page.
type Exhibit struct {
	URL  string `json:"url" bson:"url"`
	Date string `json:"date" bson:"date"`
}

// Record is a fully resolved Active Foreign Principal entry. A Record is only
// produced by PartialRecord.Complete, so Exhibits is never nil.
type Record struct {
	URL              string    `json:"url" bson:"url"`
	ForeignPrincipal string    `json:"foreign_principal" bson:"foreign_principal"`
	FPRegDate        string    `json:"fp_reg_date" bson:"fp_reg_date"`
	Address          string    `json:"address" bson:"address"`
	State            string    `json:"state" bson:"state"`
	Country          string    `json:"country" bson:"country"`
	Registrant       string    `json:"registrant" bson:"registrant"`
	RegNum           string    `json:"reg_num" bson:"reg_num"`
	RegDate          string    `json:"reg_date" bson:"reg_date"`
	Exhibits         []Exhibit `json:"exhibits" bson:"exhibits"`
}

// PartialRecord holds the listing-row fields of a record whose detail page has
// not been resolved yet. URL is also the detail page to fetch.
type PartialRecord struct {
	URL              string
	ForeignPrincipal string
	FPRegDate        string
	Address          string
	State            string
	Country          string
	Registrant       string
	RegNum           string
	RegDate          string
}

// Complete attaches the exhibits and returns the finished Record.
func (p PartialRecord) Complete(exhibits []Exhibit) Record {
	attached := make([]Exhibit, len(exhibits))
	copy(attached, exhibits)
	return Record{
		URL:              p.URL,
		ForeignPrincipal: p.ForeignPrincipal,
		FPRegDate:        p.FPRegDate,
		Address:          p.Address,
		State:            p.State,
		Country:          p.Country,
		Registrant:       p.Registrant,
		RegNum:           p.RegNum,
		RegDate:          p.RegDate,
		Exhibits:         attached,
	}
}

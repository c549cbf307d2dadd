package model

import "encoding/json"

// ExperienceUnknown is used when a posting does not state the required experience.
const ExperienceUnknown = "N/A"

// JobPosting is a single job advertisement extracted from a careers page.
type JobPosting struct {
	Role        string   `json:"role"`
	Experience  string   `json:"experience"`
	Skills      []string `json:"skills"`
	Description string   `json:"description"`
}

// Outreach is the per-job result of a session: the posting, the portfolio
// links matched for it and the generated email. Err is set when the email
// could not be composed; Email is empty in that case.
type Outreach struct {
	Index int
	Job   JobPosting
	Links []string
	Email string
	Err   error
}

// Failed reports whether the email for this job could not be produced.
func (o Outreach) Failed() bool {
	return o.Err != nil
}

type outreachJSON struct {
	Index int        `json:"index"`
	Job   JobPosting `json:"job"`
	Links []string   `json:"links"`
	Email string     `json:"email"`
	Error string     `json:"error,omitempty"`
}

// MarshalJSON renders the error note as a plain string.
func (o Outreach) MarshalJSON() ([]byte, error) {
	out := outreachJSON{
		Index: o.Index,
		Job:   o.Job,
		Links: o.Links,
		Email: o.Email,
	}
	if out.Links == nil {
		out.Links = []string{}
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}

package apollo

type matchRequest struct {
	LinkedInURL          string `json:"linkedin_url"`
	RevealPersonalEmails bool   `json:"reveal_personal_emails"`
}

type matchResponse struct {
	Person *person `json:"person"`
}

type person struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	EmailStatus  string `json:"email_status"`
	Title        string `json:"title"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	Organization *struct {
		Name string `json:"name"`
	} `json:"organization"`
	PhoneNumbers []struct {
		SanitizedNumber string `json:"sanitized_number"`
	} `json:"phone_numbers"`
}

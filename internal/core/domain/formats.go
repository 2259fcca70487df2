package domain

// DefaultFormats returns the built-in format registry entries.
// IDs are stable so that re-seeding an existing registry is idempotent.
func DefaultFormats() []BitstreamFormat {
	return []BitstreamFormat{
		{
			ID:               "fmt-unknown",
			ShortDescription: FormatUnknown,
			MIMEType:         "application/octet-stream",
			Description:      "Unknown data format",
		},
		{
			ID:               "fmt-text",
			ShortDescription: "Text",
			MIMEType:         "text/plain",
			Description:      "Plain Text",
			Extensions:       []string{"txt", "asc", "text"},
		},
		{
			ID:               "fmt-csv",
			ShortDescription: "CSV",
			MIMEType:         "text/csv",
			Description:      "Comma-separated values",
			Extensions:       []string{"csv"},
		},
		{
			ID:               "fmt-html",
			ShortDescription: "HTML",
			MIMEType:         "text/html",
			Description:      "Hypertext Markup Language",
			Extensions:       []string{"htm", "html", "xhtml"},
		},
		{
			ID:               "fmt-markdown",
			ShortDescription: "Markdown",
			MIMEType:         "text/markdown",
			Description:      "Markdown text",
			Extensions:       []string{"md", "markdown"},
		},
		{
			ID:               "fmt-pdf",
			ShortDescription: "Adobe PDF",
			MIMEType:         "application/pdf",
			Description:      "Adobe Portable Document Format",
			Extensions:       []string{"pdf"},
		},
		{
			ID:               "fmt-docx",
			ShortDescription: "Microsoft Word XML",
			MIMEType:         "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			Description:      "Microsoft Word XML",
			Extensions:       []string{"docx"},
		},
		{
			ID:               "fmt-rfc822",
			ShortDescription: "RFC822 Message",
			MIMEType:         "message/rfc822",
			Description:      "Internet e-mail message",
			Extensions:       []string{"eml"},
		},
		{
			ID:               "fmt-jpeg",
			ShortDescription: "JPEG",
			MIMEType:         "image/jpeg",
			Description:      "Joint Photographic Experts Group/JPEG File Interchange Format (JFIF)",
			Extensions:       []string{"jpeg", "jpg"},
		},
		{
			ID:               "fmt-png",
			ShortDescription: "PNG",
			MIMEType:         "image/png",
			Description:      "Portable Network Graphics",
			Extensions:       []string{"png"},
		},
		{
			ID:               "fmt-gif",
			ShortDescription: "GIF",
			MIMEType:         "image/gif",
			Description:      "Graphics Interchange Format",
			Extensions:       []string{"gif"},
		},
	}
}

package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// LinkEmailData feeds the verification and password reset templates.
type LinkEmailData struct {
	SiteName  string
	Username  string
	Link      string
	ExpiresIn string // e.g. "1 hour"; empty hides the line
}

// NoticeEmailData feeds plain security notices. Changes, when set, is
// listed under the message.
type NoticeEmailData struct {
	SiteName string
	Username string
	Message  string
	Changes  []string
}

var (
	linkHTML   = template.Must(template.New("link").Parse(linkHTMLTemplate))
	noticeHTML = template.Must(template.New("notice").Parse(noticeHTMLTemplate))
)

// BuildVerificationEmail asks a new user to confirm their address.
func BuildVerificationEmail(to string, data LinkEmailData) (Email, error) {
	var text bytes.Buffer
	fmt.Fprintf(&text, "Hi %s,\n\n", data.Username)
	fmt.Fprintf(&text, "Thanks for signing up for %s. Please confirm your email address by opening this link:\n", data.SiteName)
	text.WriteString(data.Link + "\n\n")
	text.WriteString("If you did not create an account, you can safely ignore this email.\n")

	html, err := render(linkHTML, linkView{LinkEmailData: data,
		Intro:  "Thanks for signing up. Please confirm your email address.",
		Button: "Verify Email",
		Footer: "If you did not create an account, you can safely ignore this email.",
	})
	if err != nil {
		return Email{}, err
	}
	return Email{
		To:       to,
		Subject:  fmt.Sprintf("Verify your %s account", data.SiteName),
		TextBody: text.String(),
		HTMLBody: html,
	}, nil
}

// BuildPasswordResetEmail carries a single-use reset link.
func BuildPasswordResetEmail(to string, data LinkEmailData) (Email, error) {
	var text bytes.Buffer
	fmt.Fprintf(&text, "Hi %s,\n\n", data.Username)
	text.WriteString("We received a request to reset your password. Open this link to choose a new one:\n")
	text.WriteString(data.Link + "\n\n")
	if data.ExpiresIn != "" {
		fmt.Fprintf(&text, "This link expires in %s.\n\n", data.ExpiresIn)
	}
	text.WriteString("If you did not request a password reset, you can safely ignore this email.\n")

	html, err := render(linkHTML, linkView{LinkEmailData: data,
		Intro:  "We received a request to reset your password.",
		Button: "Reset Password",
		Footer: "If you did not request a password reset, you can safely ignore this email.",
	})
	if err != nil {
		return Email{}, err
	}
	return Email{
		To:       to,
		Subject:  fmt.Sprintf("Reset your %s password", data.SiteName),
		TextBody: text.String(),
		HTMLBody: html,
	}, nil
}

// BuildNoticeEmail is used for account notices that need no link.
func BuildNoticeEmail(to, subject string, data NoticeEmailData) (Email, error) {
	var text bytes.Buffer
	fmt.Fprintf(&text, "Hi %s,\n\n%s\n", data.Username, data.Message)
	for _, c := range data.Changes {
		text.WriteString("  - " + c + "\n")
	}
	text.WriteString("\nIf this wasn't you, please reset your password immediately.\n")

	html, err := render(noticeHTML, data)
	if err != nil {
		return Email{}, err
	}
	return Email{
		To:       to,
		Subject:  subject,
		TextBody: text.String(),
		HTMLBody: html,
	}, nil
}

type linkView struct {
	LinkEmailData
	Intro  string
	Button string
	Footer string
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

const linkHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 16px; font-size: 16px; color: #374151;">Hi {{.Username}},</p>
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">{{.Intro}}</p>
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.Link}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 16px; border-radius: 6px;">{{.Button}}</a>
                  </td>
                </tr>
              </table>
              {{if .ExpiresIn}}<p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">This link expires in {{.ExpiresIn}}.</p>{{end}}
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">{{.Footer}}</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`

const noticeHTMLTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin: 0; padding: 24px; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <div style="max-width: 480px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; padding: 32px;">
    <h1 style="margin: 0 0 24px; font-size: 22px; color: #4f46e5;">{{.SiteName}}</h1>
    <p style="font-size: 16px; color: #374151;">Hi {{.Username}},</p>
    <p style="font-size: 16px; color: #374151; line-height: 1.5;">{{.Message}}</p>
    {{if .Changes}}<ul style="font-size: 15px; color: #374151;">{{range .Changes}}<li>{{.}}</li>{{end}}</ul>{{end}}
    <p style="font-size: 13px; color: #9ca3af;">If this wasn't you, please reset your password immediately.</p>
  </div>
</body>
</html>`

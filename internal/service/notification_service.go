package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"hokenhub/internal/mailer"
	"hokenhub/internal/model"
	"hokenhub/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

type BroadcastRequest struct {
	Subject    string
	Message    string
	Attachment *mailer.Attachment
}

type RequestUpdateRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Position string `json:"position"`
	Message  string `json:"message" binding:"required"`
}

// DigestResult summarizes one weekly digest run
type DigestResult struct {
	Recipients int `json:"recipients"`
	Plans      int `json:"plans"`
}

// NotificationService owns every outbound email of the directory
type NotificationService interface {
	NotifyRegistration(ctx context.Context, user *model.User) error
	SendPasswordReset(ctx context.Context, email, link string) error
	Broadcast(ctx context.Context, caller Caller, req BroadcastRequest) (int, error)
	RequestUpdate(ctx context.Context, req RequestUpdateRequest) error
	SendWeeklyDigest(ctx context.Context) (*DigestResult, error)
}

type notificationService struct {
	mail       mailer.Mailer
	users      repository.UserRepository
	plans      repository.PlanRepository
	audit      auditor
	superAdmin string
	log        *logrus.Logger
}

func NewNotificationService(
	mail mailer.Mailer,
	users repository.UserRepository,
	plans repository.PlanRepository,
	audits repository.AuditRepository,
	superAdminEmail string,
	log *logrus.Logger,
) NotificationService {
	return &notificationService{
		mail:       mail,
		users:      users,
		plans:      plans,
		audit:      auditor{repo: audits},
		superAdmin: model.NormalizeEmail(superAdminEmail),
		log:        log,
	}
}

var registrationTemplate = template.Must(template.New("registration").Parse(`
<p>A new user has registered and is awaiting approval.</p>
<ul>
  <li><strong>Name:</strong> {{.FirstName}} {{.LastName}}</li>
  <li><strong>Email:</strong> {{.Email}}</li>
  <li><strong>Requested facility:</strong> {{.RequestedFacility}}</li>
  <li><strong>Department:</strong> {{.Department}}</li>
  <li><strong>NPI:</strong> {{.NPI}}</li>
</ul>
<p>Review pending users in the admin dashboard.</p>`))

var resetTemplate = template.Must(template.New("reset").Parse(`
<p>Hello,</p>
<p>You requested to reset your password. Please click the link below:</p>
<p><a href="{{.}}">{{.}}</a></p>
<p>This link will expire in 15 minutes.</p>
<p>If you did not request this, please ignore this email.</p>`))

var updateRequestTemplate = template.Must(template.New("update").Parse(`
<p><strong>Name:</strong> {{.Name}}<br/>
<strong>Email:</strong> {{.Email}}<br/>
<strong>Position:</strong> {{if .Position}}{{.Position}}{{else}}N/A{{end}}</p>
<p><strong>Message:</strong></p>
<p>{{.Message}}</p>`))

var digestTemplate = template.Must(template.New("digest").Parse(`
<p>Hi {{.Name}},</p>
<p>Here is this week's summary of the insurance plan directory ({{.Total}} plans).</p>
<table border="1" cellpadding="4" cellspacing="0">
  <tr><th>Facility</th><th>Plans</th></tr>
  {{range .Counts}}<tr><td>{{.FacilityName}}</td><td>{{.Total}}</td></tr>{{end}}
</table>
<p>The full directory is attached as a spreadsheet. If you need changes, please use the <strong>Request Update</strong> feature in the app.</p>
<p>Thanks,<br/>HokenHub Team</p>`))

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func emails(users []model.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		if u.Email != "" {
			out = append(out, u.Email)
		}
	}
	return out
}

func (s *notificationService) NotifyRegistration(ctx context.Context, user *model.User) error {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		return err
	}
	recipients := emails(admins)
	if len(recipients) == 0 {
		s.log.WithField("user_id", user.ID).Warn("no approved admins to notify of registration")
		return nil
	}

	body, err := render(registrationTemplate, user)
	if err != nil {
		return err
	}
	return s.mail.Send(ctx, mailer.Message{
		Bcc:     recipients,
		Subject: fmt.Sprintf("New registration pending approval: %s %s", user.FirstName, user.LastName),
		HTML:    body,
	})
}

func (s *notificationService) SendPasswordReset(ctx context.Context, email, link string) error {
	body, err := render(resetTemplate, link)
	if err != nil {
		return err
	}
	return s.mail.Send(ctx, mailer.Message{
		To:      []string{email},
		Subject: "Reset Your Password - HokenHub",
		HTML:    body,
	})
}

// Broadcast emails every approved user and returns the recipient count
func (s *notificationService) Broadcast(ctx context.Context, caller Caller, req BroadcastRequest) (int, error) {
	trimAll(&req.Subject, &req.Message)
	if req.Subject == "" || req.Message == "" {
		return 0, newError(KindValidation, "Subject and message are required")
	}

	users, err := s.users.ListApproved(ctx)
	if err != nil {
		return 0, internalError(err)
	}
	recipients := emails(users)
	if len(recipients) == 0 {
		return 0, newError(KindValidation, "No approved users to send to.")
	}

	msg := mailer.Message{
		Bcc:     recipients,
		Subject: req.Subject,
		HTML:    "<p>" + strings.ReplaceAll(html.EscapeString(req.Message), "\n", "<br/>") + "</p>",
	}
	if req.Attachment != nil {
		msg.Attachments = []mailer.Attachment{*req.Attachment}
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		return 0, &Error{Kind: KindInternal, Message: "Failed to send broadcast email.", Err: err}
	}

	details := map[string]interface{}{"subject": req.Subject, "recipients": len(recipients)}
	if err := s.audit.record(ctx, caller, model.ActionBroadcastEmail, "", req.Subject, "", details); err != nil {
		s.log.WithError(err).Warn("failed to audit broadcast email")
	}
	return len(recipients), nil
}

func (s *notificationService) RequestUpdate(ctx context.Context, req RequestUpdateRequest) error {
	trimAll(&req.Name, &req.Email, &req.Position, &req.Message)
	if req.Name == "" || req.Email == "" || req.Message == "" {
		return newError(KindValidation, "Name, email, and message are required.")
	}

	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		return internalError(err)
	}
	recipients := emails(admins)
	if len(recipients) == 0 {
		return newError(KindNotFound, "No admin recipients found.")
	}

	body, err := render(updateRequestTemplate, req)
	if err != nil {
		return internalError(err)
	}
	if err := s.mail.Send(ctx, mailer.Message{
		Bcc:     recipients,
		ReplyTo: req.Email,
		Subject: "New Update Request from " + req.Name,
		HTML:    body,
	}); err != nil {
		return &Error{Kind: KindInternal, Message: "Failed to send request email.", Err: err}
	}
	return nil
}

// SendWeeklyDigest mails every approved admin except the super admin a per-facility
// summary with the full directory attached as a spreadsheet. One failed recipient does not
// stop the others.
func (s *notificationService) SendWeeklyDigest(ctx context.Context) (*DigestResult, error) {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	recipients := make([]model.User, 0, len(admins))
	for _, a := range admins {
		if a.Email != s.superAdmin {
			recipients = append(recipients, a)
		}
	}
	if len(recipients) == 0 {
		s.log.Warn("no admin recipients for weekly digest")
		return &DigestResult{}, nil
	}

	plans, err := s.plans.List(ctx, repository.PlanFilter{})
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	counts, err := s.plans.CountByFacility(ctx)
	if err != nil {
		return nil, fmt.Errorf("count plans: %w", err)
	}
	attachment, err := plansWorkbook(plans)
	if err != nil {
		return nil, fmt.Errorf("build workbook: %w", err)
	}

	filename := "InsurancePlans-" + time.Now().Format("2006-01-02") + ".xlsx"
	var errs []error
	sent := 0
	for _, admin := range recipients {
		body, err := render(digestTemplate, map[string]interface{}{
			"Name":   strings.TrimSpace(admin.FirstName + " " + admin.LastName),
			"Total":  len(plans),
			"Counts": counts,
		})
		if err != nil {
			return nil, err
		}
		err = s.mail.Send(ctx, mailer.Message{
			To:          []string{admin.Email},
			Subject:     "Weekly Insurance Plan Directory",
			HTML:        body,
			Attachments: []mailer.Attachment{{Filename: filename, ContentType: xlsxMediaType, Data: attachment}},
		})
		if err != nil {
			s.log.WithError(err).WithField("email", admin.Email).Error("weekly digest delivery failed")
			errs = append(errs, err)
			continue
		}
		sent++
	}

	return &DigestResult{Recipients: sent, Plans: len(plans)}, errors.Join(errs...)
}

const (
	digestSheet   = "Plans"
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// plansWorkbook renders the directory as a single-sheet xlsx file with a header row
func plansWorkbook(plans []model.InsurancePlan) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", digestSheet); err != nil {
		return nil, err
	}
	header := []interface{}{
		"Facility", "Descriptive Name", "Payer Name", "Plan Name", "Payer Code", "Plan Code",
		"Financial Class", "Prefixes", "Payer ID", "IPA Payer ID", "Phone Numbers", "Facility Contracts", "Notes",
	}
	if err := f.SetSheetRow(digestSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, p := range plans {
		phones := make([]string, 0, len(p.PhoneNumbers))
		for _, ph := range p.PhoneNumbers {
			phones = append(phones, strings.TrimSpace(ph.Title+": "+ph.Number))
		}
		contracts := make([]string, 0, len(p.FacilityContracts))
		for _, c := range p.FacilityContracts {
			contracts = append(contracts, c.FacilityName+" ("+c.ContractStatus+")")
		}
		row := []interface{}{
			p.FacilityName, p.DescriptiveName, p.PayerName, p.PlanName,
			p.PayerCode, p.PlanCode, p.FinancialClass,
			strings.Join(p.Prefixes, " "), p.PayerID, p.IPAPayerID,
			strings.Join(phones, "; "), strings.Join(contracts, "; "), p.Notes,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(digestSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"hokenhub/internal/model"
	"hokenhub/internal/repository"
	"hokenhub/internal/storage"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	msgPlanNotFound  = "Insurance plan not found"
	msgNoFacility    = "Unauthorized or missing facility access."
	msgForeignImage  = "Image does not belong to this facility"
	blobDeleteBudget = 15 * time.Second
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9]{3}$`)

var contractStatuses = map[string]bool{
	model.ContractContracted:    true,
	model.ContractNotContracted: true,
	model.ContractMustCall:      true,
	model.ContractSeeNotes:      true,
}

// PlanRequest documents the writable shape of an insurance plan. facilityName
// is accepted but always replaced by the caller's active facility.
type PlanRequest struct {
	FacilityName           string                   `json:"facilityName,omitempty"`
	DescriptiveName        string                   `json:"descriptiveName"`
	PayerName              string                   `json:"payerName"`
	PlanName               string                   `json:"planName"`
	PayerCode              int                      `json:"payerCode"`
	PlanCode               int                      `json:"planCode"`
	FinancialClass         string                   `json:"financialClass"`
	Notes                  string                   `json:"notes,omitempty"`
	AuthorizationNotes     string                   `json:"authorizationNotes,omitempty"`
	IPAPayerID             string                   `json:"ipaPayerId,omitempty"`
	PayerID                string                   `json:"payerId,omitempty"`
	FacilityAddress        *model.Address           `json:"facilityAddress,omitempty"`
	ProviderAddress        *model.Address           `json:"providerAddress,omitempty"`
	PhoneNumbers           []model.PhoneNumber      `json:"phoneNumbers,omitempty"`
	Prefixes               []string                 `json:"prefixes,omitempty"`
	FacilityContracts      []model.FacilityContract `json:"facilityContracts,omitempty"`
	Image                  string                   `json:"image,omitempty"`
	ImagePublicID          string                   `json:"imagePublicId,omitempty"`
	SecondaryImage         string                   `json:"secondaryImage,omitempty"`
	SecondaryImagePublicID string                   `json:"secondaryImagePublicId,omitempty"`
}

// PlanFields is a decoded JSON object body. Only allow-listed keys are applied.
type PlanFields map[string]json.RawMessage

// Fields converts r into the generic body form
func (r PlanRequest) Fields() (PlanFields, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var fields PlanFields
	return fields, json.Unmarshal(raw, &fields)
}

// PlanEvent is pushed to live directory subscribers of Facility
type PlanEvent struct {
	Type         string `json:"type"`
	FacilityName string `json:"facilityName"`
	PlanID       string `json:"planId"`
}

const (
	PlanCreated = "plan.created"
	PlanUpdated = "plan.updated"
	PlanDeleted = "plan.deleted"
)

// PlanPublisher fans plan events out to subscribers of a facility
type PlanPublisher interface {
	PublishPlanEvent(event PlanEvent)
}

type PlanService interface {
	Create(ctx context.Context, caller Caller, fields PlanFields) (*model.InsurancePlan, error)
	List(ctx context.Context, filter repository.PlanFilter) ([]model.InsurancePlan, error)
	Get(ctx context.Context, caller Caller, id string) (*model.InsurancePlan, error)
	Update(ctx context.Context, caller Caller, id string, fields PlanFields) (*model.InsurancePlan, error)
	Delete(ctx context.Context, caller Caller, id string) error
	UploadImage(ctx context.Context, caller Caller, filename, contentType string, body []byte) (*storage.Image, error)
}

type planService struct {
	tm        repository.TransactionManager
	plans     repository.PlanRepository
	images    storage.ImageStore
	publisher PlanPublisher
	audit     auditor
	log       *logrus.Logger
}

func NewPlanService(
	tm repository.TransactionManager,
	plans repository.PlanRepository,
	audits repository.AuditRepository,
	images storage.ImageStore,
	publisher PlanPublisher,
	log *logrus.Logger,
) PlanService {
	return &planService{
		tm:        tm,
		plans:     plans,
		images:    images,
		publisher: publisher,
		audit:     auditor{repo: audits},
		log:       log,
	}
}

// planSetters is the update allow-list; facilityName is create-only and has no setter
var planSetters = map[string]func(p *model.InsurancePlan, raw json.RawMessage) error{
	"descriptiveName":        stringSetter(func(p *model.InsurancePlan) *string { return &p.DescriptiveName }),
	"payerName":              stringSetter(func(p *model.InsurancePlan) *string { return &p.PayerName }),
	"planName":               stringSetter(func(p *model.InsurancePlan) *string { return &p.PlanName }),
	"financialClass":         stringSetter(func(p *model.InsurancePlan) *string { return &p.FinancialClass }),
	"notes":                  stringSetter(func(p *model.InsurancePlan) *string { return &p.Notes }),
	"authorizationNotes":     stringSetter(func(p *model.InsurancePlan) *string { return &p.AuthorizationNotes }),
	"ipaPayerId":             stringSetter(func(p *model.InsurancePlan) *string { return &p.IPAPayerID }),
	"payerId":                stringSetter(func(p *model.InsurancePlan) *string { return &p.PayerID }),
	"image":                  stringSetter(func(p *model.InsurancePlan) *string { return &p.Image }),
	"imagePublicId":          stringSetter(func(p *model.InsurancePlan) *string { return &p.ImagePublicID }),
	"secondaryImage":         stringSetter(func(p *model.InsurancePlan) *string { return &p.SecondaryImage }),
	"secondaryImagePublicId": stringSetter(func(p *model.InsurancePlan) *string { return &p.SecondaryImagePublicID }),
	"payerCode": func(p *model.InsurancePlan, raw json.RawMessage) error {
		return decodeField(raw, &p.PayerCode)
	},
	"planCode": func(p *model.InsurancePlan, raw json.RawMessage) error {
		return decodeField(raw, &p.PlanCode)
	},
	"facilityAddress": func(p *model.InsurancePlan, raw json.RawMessage) error {
		var a model.Address
		if err := decodeField(raw, &a); err != nil {
			return err
		}
		p.FacilityAddress = datatypes.NewJSONType(a)
		return nil
	},
	"providerAddress": func(p *model.InsurancePlan, raw json.RawMessage) error {
		var a model.Address
		if err := decodeField(raw, &a); err != nil {
			return err
		}
		p.ProviderAddress = datatypes.NewJSONType(a)
		return nil
	},
	"phoneNumbers": func(p *model.InsurancePlan, raw json.RawMessage) error {
		var v []model.PhoneNumber
		if err := decodeField(raw, &v); err != nil {
			return err
		}
		p.PhoneNumbers = datatypes.JSONSlice[model.PhoneNumber](v)
		return nil
	},
	"prefixes": func(p *model.InsurancePlan, raw json.RawMessage) error {
		var v []string
		if err := decodeField(raw, &v); err != nil {
			return err
		}
		p.Prefixes = datatypes.JSONSlice[string](v)
		return nil
	},
	"facilityContracts": func(p *model.InsurancePlan, raw json.RawMessage) error {
		var v []model.FacilityContract
		if err := decodeField(raw, &v); err != nil {
			return err
		}
		p.FacilityContracts = datatypes.JSONSlice[model.FacilityContract](v)
		return nil
	},
}

func stringSetter(field func(p *model.InsurancePlan) *string) func(p *model.InsurancePlan, raw json.RawMessage) error {
	return func(p *model.InsurancePlan, raw json.RawMessage) error {
		var v string
		if err := decodeField(raw, &v); err != nil {
			return err
		}
		*field(p) = strings.TrimSpace(v)
		return nil
	}
}

// decodeField treats JSON null as the zero value
func decodeField(raw json.RawMessage, dst interface{}) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// applyFields copies allow-listed keys onto p and returns the names it applied
func applyFields(p *model.InsurancePlan, fields PlanFields) ([]string, error) {
	applied := make([]string, 0, len(fields))
	for key, raw := range fields {
		set, ok := planSetters[key]
		if !ok {
			continue
		}
		if err := set(p, raw); err != nil {
			return nil, newError(KindValidation, fmt.Sprintf("Invalid value for %s", key))
		}
		applied = append(applied, key)
	}
	sort.Strings(applied)
	return applied, nil
}

func validatePlan(p *model.InsurancePlan) error {
	switch {
	case p.DescriptiveName == "":
		return newError(KindValidation, "Descriptive name is required")
	case p.PayerName == "":
		return newError(KindValidation, "Payer name is required")
	case p.PlanName == "":
		return newError(KindValidation, "Plan name is required")
	case p.FinancialClass == "":
		return newError(KindValidation, "Financial class is required")
	case p.PayerCode < 0:
		return newError(KindValidation, "Payer Code must be a positive number")
	case p.PlanCode < 0:
		return newError(KindValidation, "Plan Code must be a positive number")
	}
	for _, prefix := range p.Prefixes {
		if !prefixPattern.MatchString(prefix) {
			return newError(KindValidation, prefix+" is not a valid 3-character prefix!")
		}
	}
	for _, ph := range p.PhoneNumbers {
		if strings.TrimSpace(ph.Title) == "" || strings.TrimSpace(ph.Number) == "" {
			return newError(KindValidation, "Phone numbers need a title and a number")
		}
	}
	for _, c := range p.FacilityContracts {
		if strings.TrimSpace(c.FacilityName) == "" || !contractStatuses[c.ContractStatus] {
			return newError(KindValidation, "Invalid facility contract")
		}
	}
	return nil
}

func planWriteError(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return &Error{Kind: KindConflict, Message: "A plan with this descriptive name already exists for the facility", Err: err}
	}
	var domain *Error
	if errors.As(err, &domain) {
		return err
	}
	return internalError(err)
}

// Create stamps the plan with the caller's active facility, ignoring any facilityName in fields
func (s *planService) Create(ctx context.Context, caller Caller, fields PlanFields) (*model.InsurancePlan, error) {
	if !caller.HasActiveFacility() {
		return nil, newError(KindForbidden, msgNoFacility)
	}

	plan := &model.InsurancePlan{}
	if _, err := applyFields(plan, fields); err != nil {
		return nil, err
	}
	plan.FacilityName = caller.ActiveFacility
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	if err := checkImageKeys(&model.InsurancePlan{}, plan); err != nil {
		return nil, err
	}

	err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.plans.Create(txCtx, plan); err != nil {
			return err
		}
		return s.audit.record(txCtx, caller, model.ActionCreatePlan, plan.ID.String(), plan.DescriptiveName, plan.FacilityName, nil)
	})
	if err != nil {
		return nil, planWriteError(err)
	}

	s.publish(PlanCreated, plan)
	return plan, nil
}

func (s *planService) List(ctx context.Context, filter repository.PlanFilter) ([]model.InsurancePlan, error) {
	plans, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, internalError(err)
	}
	return plans, nil
}

// owned loads a plan and enforces that it belongs to the caller's active facility
func (s *planService) owned(ctx context.Context, caller Caller, id, verb string) (*model.InsurancePlan, error) {
	if !validUUID(id) {
		return nil, newError(KindNotFound, msgPlanNotFound)
	}
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, msgPlanNotFound)
	}
	if !caller.HasActiveFacility() {
		return nil, newError(KindForbidden, msgNoFacility)
	}
	if plan.FacilityName != caller.ActiveFacility {
		return nil, newError(KindForbidden, "Unauthorized to "+verb+" this plan")
	}
	return plan, nil
}

// checkImageKeys rejects public ids that were neither already on the plan nor
// issued under the plan's facility folder
func checkImageKeys(before, after *model.InsurancePlan) error {
	folder := storage.FacilityFolder(after.FacilityName) + "/"
	ids := [][2]string{
		{before.ImagePublicID, after.ImagePublicID},
		{before.SecondaryImagePublicID, after.SecondaryImagePublicID},
	}
	for _, id := range ids {
		stored, sent := id[0], id[1]
		if sent == "" || sent == stored {
			continue
		}
		if !strings.HasPrefix(sent, folder) || strings.Contains(sent, "..") {
			return newError(KindValidation, msgForeignImage)
		}
	}
	return nil
}

func (s *planService) Get(ctx context.Context, caller Caller, id string) (*model.InsurancePlan, error) {
	return s.owned(ctx, caller, id, "access")
}

func (s *planService) Update(ctx context.Context, caller Caller, id string, fields PlanFields) (*model.InsurancePlan, error) {
	var (
		plan     *model.InsurancePlan
		orphaned []string
	)
	err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if plan, err = s.owned(txCtx, caller, id, "update"); err != nil {
			return err
		}
		before := *plan

		applied, err := applyFields(plan, fields)
		if err != nil {
			return err
		}
		orphaned = releasedImages(&before, plan, fields)
		if err := validatePlan(plan); err != nil {
			return err
		}
		if err := checkImageKeys(&before, plan); err != nil {
			return err
		}
		if err := s.plans.Update(txCtx, plan); err != nil {
			return err
		}
		return s.audit.record(txCtx, caller, model.ActionUpdatePlan, plan.ID.String(), plan.DescriptiveName, plan.FacilityName,
			map[string]interface{}{"fields": applied})
	})
	if err != nil {
		return nil, planWriteError(err)
	}

	s.deleteBlobs(plan.FacilityName, orphaned)
	s.publish(PlanUpdated, plan)
	return plan, nil
}

// releasedImages reports blob keys that the update detached from the plan. An
// image explicitly cleared also clears its public id.
func releasedImages(before, after *model.InsurancePlan, fields PlanFields) []string {
	var keys []string
	check := func(urlKey string, url *string, publicID *string, oldID string) {
		if _, sent := fields[urlKey]; sent && *url == "" {
			*publicID = ""
		}
		if oldID != "" && *publicID != oldID {
			keys = append(keys, oldID)
		}
	}
	check("image", &after.Image, &after.ImagePublicID, before.ImagePublicID)
	check("secondaryImage", &after.SecondaryImage, &after.SecondaryImagePublicID, before.SecondaryImagePublicID)
	return keys
}

func (s *planService) Delete(ctx context.Context, caller Caller, id string) error {
	var plan *model.InsurancePlan
	err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if plan, err = s.owned(txCtx, caller, id, "delete"); err != nil {
			return err
		}
		if err := s.plans.Delete(txCtx, id); err != nil {
			return storeError(err, msgPlanNotFound)
		}
		return s.audit.record(txCtx, caller, model.ActionDeletePlan, id, plan.DescriptiveName, plan.FacilityName, nil)
	})
	if err != nil {
		return planWriteError(err)
	}

	s.deleteBlobs(plan.FacilityName, plan.ImageKeys())
	s.publish(PlanDeleted, plan)
	return nil
}

// UploadImage stores the file under the caller's active facility folder
func (s *planService) UploadImage(ctx context.Context, caller Caller, filename, contentType string, body []byte) (*storage.Image, error) {
	if !caller.HasActiveFacility() {
		return nil, newError(KindForbidden, msgNoFacility)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, newError(KindValidation, "Only image uploads are allowed")
	}
	img, err := s.images.Upload(ctx, storage.FacilityFolder(caller.ActiveFacility), filename, contentType, bytes.NewReader(body))
	if err != nil {
		if errors.Is(err, storage.ErrDisabled) {
			return nil, &Error{Kind: KindInternal, Message: "Image storage is not configured", Err: err}
		}
		return nil, internalError(err)
	}
	return img, nil
}

// deleteBlobs removes stored images after the row change committed; failures
// are logged only. Keys outside the facility folder are never touched.
func (s *planService) deleteBlobs(facility string, keys []string) {
	folder := storage.FacilityFolder(facility) + "/"
	for _, key := range keys {
		if !strings.HasPrefix(key, folder) {
			s.log.WithField("public_id", key).Warn("skipping image outside facility folder")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), blobDeleteBudget)
		if err := s.images.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("public_id", key).Error("failed to delete plan image")
		}
		cancel()
	}
}

func (s *planService) publish(kind string, plan *model.InsurancePlan) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishPlanEvent(PlanEvent{Type: kind, FacilityName: plan.FacilityName, PlanID: plan.ID.String()})
}

package patient

import (
	"context"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

// Persisted keys. full_name is derived and kept for name search.
const (
	keyFirstName        = "first_name"
	keyLastName         = "last_name"
	keyFullName         = "full_name"
	keyDateOfBirth      = "date_of_birth"
	keyGender           = "gender"
	keyPhone            = "phone"
	keyEmail            = "email"
	keyBloodGroup       = "blood_group"
	keyAllergies        = "allergies"
	keyAddress          = "address"
	keyEmergencyContact = "emergency_contact"
	keyInsurance        = "insurance"
	keyStatus           = "status"
	keyCreatedAt        = "created_at"
	keyUpdatedAt        = "updated_at"
)

// Indexes lists the fields worth indexing in SQL and Mongo drivers.
var Indexes = []string{keyStatus, keyFullName, keyCreatedAt}

type docRepo struct {
	store docstore.Store
}

func NewDocRepo(store docstore.Store) Repository {
	return &docRepo{store: store}
}

func (r *docRepo) List(ctx context.Context, f ListFilter) ([]*Patient, int, error) {
	q := docstore.Query{OrderBy: keyCreatedAt, Desc: true}
	if f.Status != "" {
		q.Where = append(q.Where, docstore.Eq(keyStatus, f.Status))
	}
	if f.Query != "" {
		q.Where = append(q.Where, docstore.Contains(keyFullName, f.Query))
	}
	total, err := r.store.Count(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}
	q.Limit, q.Offset = f.Limit, f.Offset
	docs, err := r.store.Find(ctx, Collection, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	out := make([]*Patient, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, total, nil
}

func (r *docRepo) GetByID(ctx context.Context, id string) (*Patient, error) {
	d, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", id, err)
	}
	return fromDoc(d), nil
}

func (r *docRepo) Create(ctx context.Context, req *CreateRequest) (*Patient, error) {
	now := docstore.Now()
	status := req.Status
	if status == "" {
		status = StatusActive
	}
	allergies := req.Allergies
	if allergies == nil {
		allergies = []string{}
	}
	doc := docstore.Document{
		keyFirstName:   req.FirstName,
		keyLastName:    req.LastName,
		keyFullName:    req.FirstName + " " + req.LastName,
		keyDateOfBirth: req.DateOfBirth,
		keyGender:      req.Gender,
		keyPhone:       req.Phone,
		keyEmail:       req.Email,
		keyBloodGroup:  req.BloodGroup,
		keyAllergies:   stringsToAny(allergies),
		keyAddress: docstore.Document{
			"street":      req.Address.Street,
			"city":        req.Address.City,
			"state":       req.Address.State,
			"postal_code": req.Address.PostalCode,
			"country":     req.Address.Country,
		},
		keyEmergencyContact: docstore.Document{
			"name":         req.EmergencyContact.Name,
			"relationship": req.EmergencyContact.Relationship,
			"phone":        req.EmergencyContact.Phone,
		},
		keyInsurance: docstore.Document{
			"provider":      req.Insurance.Provider,
			"policy_number": req.Insurance.PolicyNumber,
			"group_number":  req.Insurance.GroupNumber,
			"expiry_date":   req.Insurance.ExpiryDate,
		},
		keyStatus:    status,
		keyCreatedAt: now,
		keyUpdatedAt: now,
	}
	id, err := r.store.Insert(ctx, Collection, doc)
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Update writes only the changed top-level keys. The store replaces nested
// objects wholesale, so a nested patch is merged leaf by leaf into the
// stored sub-document and the whole sub-document is written back.
func (r *docRepo) Update(ctx context.Context, id string, req *UpdateRequest) (*Patient, error) {
	current, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", id, err)
	}

	fields := docstore.Document{}
	setString(fields, keyFirstName, req.FirstName)
	setString(fields, keyLastName, req.LastName)
	setString(fields, keyDateOfBirth, req.DateOfBirth)
	setString(fields, keyGender, req.Gender)
	setString(fields, keyPhone, req.Phone)
	setString(fields, keyEmail, req.Email)
	setString(fields, keyBloodGroup, req.BloodGroup)
	setString(fields, keyStatus, req.Status)
	if req.Allergies != nil {
		fields[keyAllergies] = stringsToAny(*req.Allergies)
	}
	if req.FirstName != nil || req.LastName != nil {
		first, last := current.String(keyFirstName), current.String(keyLastName)
		if req.FirstName != nil {
			first = *req.FirstName
		}
		if req.LastName != nil {
			last = *req.LastName
		}
		fields[keyFullName] = first + " " + last
	}
	if p := req.Address; p != nil {
		sub := subDoc(current, keyAddress)
		setString(sub, "street", p.Street)
		setString(sub, "city", p.City)
		setString(sub, "state", p.State)
		setString(sub, "postal_code", p.PostalCode)
		setString(sub, "country", p.Country)
		fields[keyAddress] = sub
	}
	if p := req.EmergencyContact; p != nil {
		sub := subDoc(current, keyEmergencyContact)
		setString(sub, "name", p.Name)
		setString(sub, "relationship", p.Relationship)
		setString(sub, "phone", p.Phone)
		fields[keyEmergencyContact] = sub
	}
	if p := req.Insurance; p != nil {
		sub := subDoc(current, keyInsurance)
		setString(sub, "provider", p.Provider)
		setString(sub, "policy_number", p.PolicyNumber)
		setString(sub, "group_number", p.GroupNumber)
		setString(sub, "expiry_date", p.ExpiryDate)
		fields[keyInsurance] = sub
	}
	fields[keyUpdatedAt] = docstore.Now()

	if err := r.store.Update(ctx, Collection, id, fields); err != nil {
		return nil, fmt.Errorf("update patient %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

func (r *docRepo) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, Collection, id); err != nil {
		return fmt.Errorf("delete patient %s: %w", id, err)
	}
	return nil
}

func setString(d docstore.Document, key string, v *string) {
	if v != nil {
		d[key] = *v
	}
}

// subDoc returns a writable copy of a nested object, empty when absent.
func subDoc(d docstore.Document, key string) docstore.Document {
	sub := docstore.Document{}
	for k, v := range d.Doc(key) {
		sub[k] = v
	}
	return sub
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func fromDoc(d docstore.Document) *Patient {
	addr := d.Doc(keyAddress)
	ec := d.Doc(keyEmergencyContact)
	ins := d.Doc(keyInsurance)
	allergies := d.Strings(keyAllergies)
	if allergies == nil {
		allergies = []string{}
	}
	return &Patient{
		ID:          d.ID(),
		FirstName:   d.String(keyFirstName),
		LastName:    d.String(keyLastName),
		DateOfBirth: d.String(keyDateOfBirth),
		Gender:      d.String(keyGender),
		Phone:       d.String(keyPhone),
		Email:       d.String(keyEmail),
		BloodGroup:  d.String(keyBloodGroup),
		Allergies:   allergies,
		Address: Address{
			Street:     addr.String("street"),
			City:       addr.String("city"),
			State:      addr.String("state"),
			PostalCode: addr.String("postal_code"),
			Country:    addr.String("country"),
		},
		EmergencyContact: EmergencyContact{
			Name:         ec.String("name"),
			Relationship: ec.String("relationship"),
			Phone:        ec.String("phone"),
		},
		Insurance: Insurance{
			Provider:     ins.String("provider"),
			PolicyNumber: ins.String("policy_number"),
			GroupNumber:  ins.String("group_number"),
			ExpiryDate:   ins.String("expiry_date"),
		},
		Status:    d.String(keyStatus),
		CreatedAt: d.Time(keyCreatedAt),
		UpdatedAt: d.Time(keyUpdatedAt),
	}
}

// Present renders a stored patient for live-update clients.
func Present(d docstore.Document) (any, error) {
	return fromDoc(d), nil
}

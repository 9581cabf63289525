// Package guestentries processes form submissions from unauthenticated
// visitors into entry creates, updates and deletes.
package guestentries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/logging"
	"github.com/duncanmcclean/guest-entries/internal/server/events"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
	"github.com/google/uuid"
)

// RevisionMessage tags revisions created by guest updates.
const RevisionMessage = "Guest Entry Updated"

// Submission keys the service reads itself instead of coercing.
const (
	KeySlug      = "slug"
	KeyPublished = "published"
	KeyDate      = "date"
	KeySite      = "site"
	KeyParent    = "parent"
	KeyTitle     = "title"
)

var baseIgnored = []string{
	"_token", "_method",
	ParamCollection, ParamID, ParamRedirect, ParamErrorRedirect, ParamRequest,
	KeySlug, KeyPublished, KeySite, KeyParent,
	"updated_at",
}

// Options is the static guest entry configuration.
type Options struct {
	// Collections maps collection handle => guest submissions allowed.
	Collections map[string]bool
	// Honeypot names a decoy field that must arrive empty. Empty disables it.
	Honeypot string
	// Insecure carries hidden parameters in clear text.
	Insecure          bool
	RevisionsEnabled  bool
	AllowedExtensions []string
}

// Dependencies are the collaborators a Service works against.
type Dependencies struct {
	Store      EntryStore
	Assets     AssetRegistry
	Schema     Schema
	Disks      Disks
	Sites      SiteResolver
	Notifier   Notifier
	Opener     Opener
	Validators *ValidatorRegistry
	Logger     logging.Logger
}

// Service runs the create, update and delete pipelines.
type Service struct {
	opts       Options
	allow      *AllowList
	store      EntryStore
	schema     Schema
	sites      SiteResolver
	notifier   Notifier
	opener     Opener
	validators *ValidatorRegistry
	coercer    *Coercer
	uploader   *Uploader
	slugs      *SlugResolver
	logger     logging.Logger

	now   func() time.Time
	newID func() string
}

func NewService(opts Options, deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	validators := deps.Validators
	if validators == nil {
		validators = NewValidatorRegistry()
	}

	uploader := NewUploader(deps.Schema, deps.Disks, deps.Assets, opts.AllowedExtensions, logger)
	return &Service{
		opts:       opts,
		allow:      NewAllowList(opts.Collections),
		store:      deps.Store,
		schema:     deps.Schema,
		sites:      deps.Sites,
		notifier:   deps.Notifier,
		opener:     deps.Opener,
		validators: validators,
		coercer:    NewCoercer(uploader, logger),
		uploader:   uploader,
		slugs:      NewSlugResolver(deps.Store),
		logger:     logger.With("module", "guestentries"),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// Create makes a new unpublished entry from the submission.
func (s *Service) Create(ctx context.Context, sub *Submission) (*Result, error) {
	const op = "create"

	env, err := s.guard(ctx, sub, false)
	if err != nil {
		return s.fail(ctx, op, env, err)
	}
	if s.honeypotTripped(sub) {
		return s.honeypot(ctx, op, env), nil
	}
	if err := s.validate(ctx, env, sub); err != nil {
		return s.fail(ctx, op, env, err)
	}

	coll, err := s.collection(env.Collection)
	if err != nil {
		return s.fail(ctx, op, env, err)
	}
	site, err := s.site(coll, sub)
	if err != nil {
		return s.fail(ctx, op, env, err)
	}

	now := s.now().UTC()
	entry := models.NewEntry(s.newID(), coll.Handle, site.Handle)

	if coll.Dated {
		date, err := submittedDate(sub, now)
		if err != nil {
			return s.fail(ctx, op, env, err)
		}
		entry.Date = &date
	}
	if v, ok := submittedPublished(sub); ok {
		entry.Published = v
	}
	if coll.Structured {
		entry.ParentID, _ = sub.String(KeyParent)
		if err := s.checkParent(ctx, entry); err != nil {
			return s.fail(ctx, op, env, err)
		}
	}

	explicitSlug, hasSlug := submittedSlug(sub)
	folderSlug := explicitSlug
	if !hasSlug {
		title, _ := sub.String(KeyTitle)
		folderSlug = Slugify(title)
	}

	ignore := s.ignored(coll)
	if err := s.coercer.Prevalidate(coll, sub.Fields, ignore); err != nil {
		return s.fail(ctx, op, env, err)
	}
	uc := UploadContext{Entry: entry, Slug: folderSlug}
	if err := s.coercer.CoerceAll(ctx, uc, coll, sub.Fields, ignore, entry.Data); err != nil {
		return s.fail(ctx, op, env, err)
	}

	slug, err := s.slugs.Resolve(ctx, coll, entry, explicitSlug, hasSlug)
	if err != nil {
		return s.fail(ctx, op, env, err)
	}
	entry.Slug = slug
	entry.CreatedAt = now
	entry.UpdatedAt = now

	var placement *models.TreePlacement
	if coll.Structured {
		placement = &models.TreePlacement{
			Collection: coll.Handle,
			Site:       entry.Site,
			ParentID:   entry.ParentID,
			Route:      coll.Route,
		}
	}

	if err := s.store.Create(ctx, entry, placement); err != nil {
		return s.fail(ctx, op, env, persistence(err))
	}

	s.logger.Info(ctx, "entry created", "collection", entry.Collection, "id", entry.ID, "slug", entry.Slug)
	s.notify(ctx, events.EntryCreated, entry)
	return s.success(env, entry), nil
}

// Update merges the submission into an existing entry. With revisions
// enabled for the collection the change is saved as a revision and the
// live entry is only touched.
func (s *Service) Update(ctx context.Context, sub *Submission) (*Result, error) {
	const op = "update"

	env, err := s.guard(ctx, sub, true)
	if err != nil {
		return s.fail(ctx, op, env, err)
	}
	if s.honeypotTripped(sub) {
		return s.honeypot(ctx, op, env), nil
	}
	if err := s.validate(ctx, env, sub); err != nil {
		return s.fail(ctx, op, env, err)
	}

	existing, err := s.find(ctx, env)
	if err != nil {
		return s.fail(ctx, op, env, err)
	}
	coll, err := s.collection(existing.Collection)
	if err != nil {
		return s.fail(ctx, op, env, err)
	}

	entry := existing.Clone()
	if slug, ok := submittedSlug(sub); ok {
		entry.Slug = slug
	}
	if v, ok := submittedPublished(sub); ok {
		entry.Published = v
	}
	if coll.Dated && sub.Has(KeyDate) {
		date, err := submittedDate(sub, s.now().UTC())
		if err != nil {
			return s.fail(ctx, op, env, err)
		}
		entry.Date = &date
	}

	ignore := s.ignored(coll)
	if err := s.coercer.Prevalidate(coll, sub.Fields, ignore); err != nil {
		return s.fail(ctx, op, env, err)
	}
	uc := UploadContext{Entry: entry, Slug: entry.Slug}
	if err := s.coercer.CoerceAll(ctx, uc, coll, sub.Fields, ignore, entry.Data); err != nil {
		return s.fail(ctx, op, env, err)
	}

	now := s.now().UTC()
	if s.opts.RevisionsEnabled && coll.Revisions {
		rev := &models.Revision{
			ID:      s.newID(),
			EntryID: entry.ID,
			Action:  models.RevisionActionRevision,
			Message: RevisionMessage,
			Attributes: models.RevisionAttributes{
				Title:     EntryTitle(coll, entry),
				Slug:      entry.Slug,
				Published: entry.Published,
				Data:      models.CloneData(entry.Data),
			},
			CreatedAt: now,
		}
		live := existing.Clone()
		live.UpdatedAt = now

		if err := s.store.SaveRevision(ctx, rev, live); err != nil {
			return s.fail(ctx, op, env, persistence(err))
		}
		s.logger.Info(ctx, "revision saved", "collection", live.Collection, "id", live.ID, "revision", rev.ID)
		s.notify(ctx, events.EntryUpdated, live)
		return s.success(env, live), nil
	}

	entry.UpdatedAt = now
	if err := s.store.Update(ctx, entry); err != nil {
		return s.fail(ctx, op, env, persistence(err))
	}

	s.logger.Info(ctx, "entry updated", "collection", entry.Collection, "id", entry.ID)
	s.notify(ctx, events.EntryUpdated, entry)
	return s.success(env, entry), nil
}

// Delete removes an existing entry.
func (s *Service) Delete(ctx context.Context, sub *Submission) (*Result, error) {
	const op = "delete"

	env, err := s.guard(ctx, sub, true)
	if err != nil {
		return s.fail(ctx, op, env, err)
	}
	if s.honeypotTripped(sub) {
		return s.honeypot(ctx, op, env), nil
	}
	if err := s.validate(ctx, env, sub); err != nil {
		return s.fail(ctx, op, env, err)
	}

	entry, err := s.find(ctx, env)
	if err != nil {
		return s.fail(ctx, op, env, err)
	}
	if err := s.store.Delete(ctx, entry.ID); err != nil {
		return s.fail(ctx, op, env, persistence(err))
	}

	s.logger.Info(ctx, "entry deleted", "collection", entry.Collection, "id", entry.ID)
	s.notify(ctx, events.EntryDeleted, entry)
	return s.success(env, entry), nil
}

// guard opens the envelope and checks the allow list. The envelope is
// returned whenever it opened, even on error.
func (s *Service) guard(_ context.Context, sub *Submission, requireID bool) (*Envelope, error) {
	env, err := OpenEnvelope(s.opener, sub.Fields, EnvelopeOptions{Insecure: s.opts.Insecure, RequireID: requireID})
	if err != nil {
		return nil, err
	}
	if err := s.allow.Check(env.Collection); err != nil {
		return env, err
	}
	return env, nil
}

// validate runs the custom validator named by _request, if any.
func (s *Service) validate(ctx context.Context, env *Envelope, sub *Submission) error {
	if env.Request == "" {
		return nil
	}
	v, err := s.validators.Get(env.Request)
	if err != nil {
		return err
	}
	return v.Validate(ctx, sub.Fields)
}

func (s *Service) honeypotTripped(sub *Submission) bool {
	if s.opts.Honeypot == "" {
		return false
	}
	v, ok := sub.Fields[s.opts.Honeypot]
	if !ok || v == nil {
		return false
	}
	str, isString := v.(string)
	return !isString || str != ""
}

func (s *Service) honeypot(ctx context.Context, op string, env *Envelope) *Result {
	s.logger.Info(ctx, "honeypot tripped", "op", op, "collection", env.Collection)
	return s.success(env, nil)
}

func (s *Service) find(ctx context.Context, env *Envelope) (*models.Entry, error) {
	entry, err := s.store.Find(ctx, env.ID)
	if err != nil {
		return nil, persistence(err)
	}
	if entry.Collection != env.Collection {
		return nil, fmt.Errorf("%w: entry %s is not in %s", common.ErrNotFound, env.ID, env.Collection)
	}
	return entry, nil
}

func (s *Service) collection(handle string) (*models.Collection, error) {
	coll, ok := s.schema.Collection(handle)
	if !ok {
		return nil, fmt.Errorf("%w: collection %q is allow-listed but not declared", common.ErrConfiguration, handle)
	}
	return coll, nil
}

func (s *Service) site(coll *models.Collection, sub *Submission) (models.Site, error) {
	explicit, _ := sub.String(KeySite)
	site := s.sites.Resolve(explicit, sub.RequestURL, sub.Referer)
	if site.Handle == "" {
		return models.Site{}, fmt.Errorf("%w: no site could be resolved", common.ErrConfiguration)
	}
	if len(coll.Sites) == 0 {
		return site, nil
	}
	for _, h := range coll.Sites {
		if h == site.Handle {
			return site, nil
		}
	}
	return models.Site{}, common.NewValidationError(KeySite, fmt.Sprintf("The %s collection is not available on the %s site.", coll.Handle, site.Handle))
}

func (s *Service) ignored(coll *models.Collection) map[string]bool {
	ignore := make(map[string]bool, len(baseIgnored)+2)
	for _, k := range baseIgnored {
		ignore[k] = true
	}
	if coll.Dated {
		ignore[KeyDate] = true
	}
	if s.opts.Honeypot != "" {
		ignore[s.opts.Honeypot] = true
	}
	return ignore
}

func (s *Service) notify(ctx context.Context, typ events.Type, entry *models.Entry) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, events.Event{Type: typ, Entry: entry.Clone()})
}

func (s *Service) success(env *Envelope, entry *models.Entry) *Result {
	return &Result{Status: StatusSuccess, Entry: entry, Envelope: env}
}

// fail builds the error result for err and returns err alongside it.
func (s *Service) fail(ctx context.Context, op string, env *Envelope, err error) (*Result, error) {
	res := &Result{Status: StatusError, Message: ErrorMessage(err), Envelope: env}

	var verr *common.ValidationError
	if errors.As(err, &verr) {
		res.Errors = verr.Fields
	}

	args := []any{"op", op, "error", err}
	if env != nil {
		args = append(args, "collection", env.Collection)
	}
	switch {
	case errors.Is(err, common.ErrConfiguration), errors.Is(err, common.ErrPersistence):
		s.logger.Error(ctx, "submission failed", args...)
	default:
		s.logger.Warn(ctx, "submission rejected", args...)
	}
	return res, err
}

// ErrorMessage is the visitor-facing summary of err.
func ErrorMessage(err error) string {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.First()
	case errors.Is(err, common.ErrTampered):
		return "The form parameters have been tampered with."
	case errors.Is(err, common.ErrNotAllowlisted):
		return "Guest entries are not allowed for this collection."
	case errors.Is(err, common.ErrNotFound):
		return "The entry could not be found."
	default:
		return "Something went wrong while saving your submission."
	}
}

// persistence leaves classified store errors alone and wraps everything
// else as a persistence failure.
func persistence(err error) error {
	for _, known := range []error{common.ErrNotFound, common.ErrPersistence, common.ErrValidation, common.ErrConfiguration} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", common.ErrPersistence, err)
}

func submittedDate(sub *Submission, now time.Time) (time.Time, error) {
	raw, _ := sub.String(KeyDate)
	if strings.TrimSpace(raw) == "" {
		return now, nil
	}
	t, ok := ParseDateInput(raw)
	if !ok {
		return time.Time{}, common.NewValidationError(KeyDate, "The date field must be a valid date.")
	}
	return t, nil
}

// submittedSlug returns the explicit slug. A blank slug input counts as
// not submitted.
func submittedSlug(sub *Submission) (string, bool) {
	v, ok := sub.String(KeySlug)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// submittedPublished accepts form strings ("1", "true", "on") and JSON
// booleans.
func submittedPublished(sub *Submission) (bool, bool) {
	switch v := sub.Fields[KeyPublished].(type) {
	case bool:
		return v, true
	case string:
		return parsePublished(v), true
	default:
		return false, false
	}
}

func parsePublished(v string) bool {
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "on")
}

// checkParent makes sure the submitted parent is an entry of the same
// collection and site.
func (s *Service) checkParent(ctx context.Context, entry *models.Entry) error {
	if entry.ParentID == "" {
		return nil
	}
	parent, err := s.store.Find(ctx, entry.ParentID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return common.NewValidationError(KeyParent, "The selected parent does not exist.")
	case err != nil:
		return persistence(err)
	}
	if parent.Collection != entry.Collection || parent.Site != entry.Site {
		return common.NewValidationError(KeyParent, "The selected parent belongs to a different collection or site.")
	}
	return nil
}

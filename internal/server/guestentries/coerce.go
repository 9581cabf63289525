package guestentries

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/logging"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
)

// MaxNestingDepth caps replicator recursion for submitted payloads.
const MaxNestingDepth = 10

// replicatorTypeKey holds the set handle of a replicator item.
const replicatorTypeKey = "type"

type coerceFunc func(ctx context.Context, uc UploadContext, field models.Field, key string, raw any, depth int) (any, error)

// Coercer turns submitted values into typed entry data, one blueprint
// field kind at a time.
type Coercer struct {
	uploader *Uploader
	logger   logging.Logger
	kinds    map[models.FieldKind]coerceFunc
}

func NewCoercer(uploader *Uploader, logger logging.Logger) *Coercer {
	c := &Coercer{
		uploader: uploader,
		logger:   logger.With("module", "coercer"),
	}
	c.kinds = map[models.FieldKind]coerceFunc{
		models.FieldText:       passThrough,
		models.FieldOther:      passThrough,
		models.FieldDate:       coerceDate,
		models.FieldAssets:     c.coerceAssets,
		models.FieldReplicator: c.coerceReplicator,
	}
	return c
}

// Prevalidate checks every uploaded file in fields, including those nested
// in replicator items, before anything is stored. All problems are
// collected into one *common.ValidationError.
func (c *Coercer) Prevalidate(coll *models.Collection, fields map[string]any, ignore map[string]bool) error {
	verr := &common.ValidationError{}
	for _, key := range sortedKeys(fields) {
		if ignore[key] {
			continue
		}
		field, ok := coll.Field(key)
		if !ok {
			continue
		}
		if err := c.prevalidate(field, key, fields[key], 1); err != nil {
			if !mergeValidation(verr, err) {
				return err
			}
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func (c *Coercer) prevalidate(field models.Field, key string, raw any, depth int) error {
	switch field.Kind {
	case models.FieldAssets:
		return c.uploader.Validate(field, key, raw)
	case models.FieldReplicator:
		if depth > MaxNestingDepth {
			return tooDeep(key)
		}
		items, err := replicatorItems(key, raw)
		if err != nil {
			return err
		}
		verr := &common.ValidationError{}
		for i, item := range items {
			set, ok := itemSet(field, item)
			if !ok {
				continue
			}
			for _, child := range sortedKeys(item) {
				sub, ok := set.Field(child)
				if !ok || child == replicatorTypeKey {
					continue
				}
				if err := c.prevalidate(sub, childKey(key, i, child), item[child], depth+1); err != nil {
					if !mergeValidation(verr, err) {
						return err
					}
				}
			}
		}
		if verr.Empty() {
			return nil
		}
		return verr
	default:
		if hasUploadedFile(raw) {
			return filesNotAccepted(key)
		}
		return nil
	}
}

// CoerceAll coerces every non-ignored key of fields into data. Field-level
// validation problems are merged into one *common.ValidationError; any
// other error aborts immediately.
func (c *Coercer) CoerceAll(ctx context.Context, uc UploadContext, coll *models.Collection, fields map[string]any, ignore map[string]bool, data map[string]any) error {
	verr := &common.ValidationError{}
	for _, key := range sortedKeys(fields) {
		if ignore[key] {
			continue
		}
		value, keep, err := c.Coerce(ctx, uc, coll, key, fields[key])
		if err != nil {
			if mergeValidation(verr, err) {
				continue
			}
			return err
		}
		if keep {
			data[key] = value
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// Coerce coerces one top-level value. Keys the blueprint does not declare
// are kept verbatim unless they carry uploaded files, which are dropped.
func (c *Coercer) Coerce(ctx context.Context, uc UploadContext, coll *models.Collection, key string, raw any) (any, bool, error) {
	field, ok := coll.Field(key)
	if !ok {
		if hasUploadedFile(raw) {
			c.logger.Warn(ctx, "dropping upload for undeclared field", "collection", coll.Handle, "field", key)
			return nil, false, nil
		}
		return raw, true, nil
	}
	v, err := c.coerceField(ctx, uc, field, key, raw, 1)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *Coercer) coerceField(ctx context.Context, uc UploadContext, field models.Field, key string, raw any, depth int) (any, error) {
	// Only assets fields store files; replicators check their own children.
	if field.Kind != models.FieldAssets && field.Kind != models.FieldReplicator && hasUploadedFile(raw) {
		return nil, filesNotAccepted(key)
	}
	fn, ok := c.kinds[field.Kind]
	if !ok {
		fn = passThrough
	}
	return fn(ctx, uc, field, key, raw, depth)
}

func passThrough(_ context.Context, _ UploadContext, _ models.Field, _ string, raw any, _ int) (any, error) {
	return raw, nil
}

func coerceDate(_ context.Context, _ UploadContext, field models.Field, key string, raw any, _ int) (any, error) {
	s, ok := raw.(string)
	if !ok || s == "" {
		return raw, nil
	}
	formatted, ok := FormatDate(s, field.ConfigString("format"))
	if !ok {
		return nil, common.NewValidationError(key, fmt.Sprintf("The %s field must be a valid date.", key))
	}
	return formatted, nil
}

func (c *Coercer) coerceAssets(ctx context.Context, uc UploadContext, field models.Field, key string, raw any, _ int) (any, error) {
	return c.uploader.Upload(ctx, uc, field, key, raw)
}

func (c *Coercer) coerceReplicator(ctx context.Context, uc UploadContext, field models.Field, key string, raw any, depth int) (any, error) {
	if depth > MaxNestingDepth {
		return nil, tooDeep(key)
	}
	if raw == nil {
		return nil, nil
	}
	items, err := replicatorItems(key, raw)
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(items))
	verr := &common.ValidationError{}
	for i, item := range items {
		set, known := itemSet(field, item)

		coerced := make(map[string]any, len(item)+1)
		for _, child := range sortedKeys(item) {
			if child == replicatorTypeKey {
				continue
			}
			value := item[child]
			sub, ok := set.Field(child)
			if !known || !ok {
				if hasUploadedFile(value) {
					c.logger.Warn(ctx, "dropping upload for undeclared field", "field", childKey(key, i, child))
					continue
				}
				coerced[child] = value
				continue
			}
			v, err := c.coerceField(ctx, uc, sub, childKey(key, i, child), value, depth+1)
			if err != nil {
				if mergeValidation(verr, err) {
					continue
				}
				return nil, err
			}
			coerced[child] = v
		}

		typ, _ := item[replicatorTypeKey].(string)
		if typ == "" && known {
			typ = set.Handle
		}
		if typ != "" {
			coerced[replicatorTypeKey] = typ
		}
		out = append(out, coerced)
	}

	if !verr.Empty() {
		return nil, verr
	}
	return out, nil
}

// replicatorItems reads raw as an ordered list of item maps.
func replicatorItems(key string, raw any) ([]map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return v, nil
	case []any:
		items := make([]map[string]any, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, common.NewValidationError(key, fmt.Sprintf("The %s field must be a list of sets.", key))
			}
			items = append(items, m)
		}
		return items, nil
	default:
		return nil, common.NewValidationError(key, fmt.Sprintf("The %s field must be a list of sets.", key))
	}
}

// itemSet picks the set named by the item's type, or the first declared
// set when the item has none.
func itemSet(field models.Field, item map[string]any) (models.Set, bool) {
	typ, _ := item[replicatorTypeKey].(string)
	return field.Set(typ)
}

func childKey(parent string, index int, child string) string {
	return parent + "." + strconv.Itoa(index) + "." + child
}

func tooDeep(key string) error {
	return common.NewValidationError(key, fmt.Sprintf("The %s field is nested more than %d levels deep.", key, MaxNestingDepth))
}

func filesNotAccepted(key string) error {
	return common.NewValidationError(key, fmt.Sprintf("The %s field does not accept files.", key))
}

// mergeValidation folds err into verr when it is a validation error.
func mergeValidation(verr *common.ValidationError, err error) bool {
	var fieldErr *common.ValidationError
	if errors.As(err, &fieldErr) {
		verr.Merge(fieldErr)
		return true
	}
	if errors.Is(err, common.ErrValidation) {
		verr.Add("_", err.Error())
		return true
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

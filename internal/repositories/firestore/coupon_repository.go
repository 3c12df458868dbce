package firestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/storelane/api/internal/domain"
	pfirestore "github.com/storelane/api/internal/platform/firestore"
	"github.com/storelane/api/internal/repositories"
)

const (
	couponCollection     = "coupons"
	couponCodeCollection = "couponCodes"
)

// CouponRepository persists coupon definitions and their usage counters.
// Redemption codes are reserved through companion couponCodes/{code} documents
// written in the same transaction as the coupon, so a second coupon claiming
// an existing code surfaces as a conflict.
type CouponRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[couponDocument]
	codes    *pfirestore.BaseRepository[couponCodeDocument]
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[couponDocument](provider, couponCollection, nil),
		codes:    pfirestore.NewBaseRepository[couponCodeDocument](provider, couponCodeCollection, nil),
	}, nil
}

// FindByCode locates a coupon by its redemption code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if r == nil || r.base == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Coupon{}, errors.New("coupon repository: code is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("code", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Coupon{}, err
	}
	if len(docs) == 0 {
		return domain.Coupon{}, pfirestore.NewNotFoundError("coupons.findbycode", fmt.Errorf("coupon %s not found", code))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// IncrementUsage atomically bumps usedCount by one.
func (r *CouponRepository) IncrementUsage(ctx context.Context, couponID string) error {
	if r == nil || r.base == nil {
		return errors.New("coupon repository not initialised")
	}

	_, err := r.base.Update(ctx, strings.TrimSpace(couponID), []firestore.Update{
		{Path: "usedCount", Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return err
}

// Upsert stores the coupon definition under its ID, preserving the current
// usage counter on replacement. The redemption code is reserved atomically; a
// code already held by a different coupon is reported as a conflict.
func (r *CouponRepository) Upsert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	if r == nil || r.provider == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	id := strings.TrimSpace(coupon.ID)
	if id == "" {
		return domain.Coupon{}, errors.New("coupon repository: coupon id is required")
	}
	code := strings.TrimSpace(coupon.Code)
	if code == "" {
		return domain.Coupon{}, errors.New("coupon repository: coupon code is required")
	}

	const op = "coupons.upsert"

	doc := newCouponDocument(coupon)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		codeRef, err := r.codes.DocumentRef(ctx, code)
		if err != nil {
			return err
		}
		couponRef, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		// Reads precede writes inside the transaction.
		reserveCode := false
		guardSnap, err := tx.Get(codeRef)
		switch {
		case err == nil:
			var guard couponCodeDocument
			if err := guardSnap.DataTo(&guard); err != nil {
				return fmt.Errorf("decode coupon code reservation %s: %w", code, err)
			}
			if guard.CouponID != id {
				return pfirestore.NewConflictError(op, fmt.Errorf("coupon code %s already belongs to %s", code, guard.CouponID))
			}
		case status.Code(err) == codes.NotFound:
			reserveCode = true
		default:
			return err
		}

		doc.UsedCount = coupon.UsedCount
		existingSnap, err := tx.Get(couponRef)
		switch {
		case err == nil:
			var existing couponDocument
			if err := existingSnap.DataTo(&existing); err != nil {
				return fmt.Errorf("decode coupon %s: %w", id, err)
			}
			doc.UsedCount = existing.UsedCount
		case status.Code(err) == codes.NotFound:
		default:
			return err
		}

		doc.UpdatedAt = time.Now().UTC()
		if reserveCode {
			if err := tx.Create(codeRef, couponCodeDocument{CouponID: id, CreatedAt: doc.UpdatedAt}); err != nil {
				return err
			}
		}
		return tx.Set(couponRef, doc)
	})
	if err != nil {
		return domain.Coupon{}, pfirestore.WrapError(op, err)
	}
	return doc.toDomain(id), nil
}

// List pages through coupon definitions ordered by code.
func (r *CouponRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Coupon]{}, errors.New("coupon repository not initialised")
	}

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	var token *couponPageToken
	if encoded := strings.TrimSpace(pager.PageToken); encoded != "" {
		decoded, err := decodeCouponPageToken(encoded)
		if err != nil {
			return domain.CursorPage[domain.Coupon]{}, pfirestore.WrapError("coupons.list", err)
		}
		token = decoded
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.OrderBy("code", firestore.Asc).Limit(pageSize + 1)
		if token != nil {
			query = query.StartAfter(token.Code)
		}
		return query
	})
	if err != nil {
		return domain.CursorPage[domain.Coupon]{}, err
	}

	coupons := make([]domain.Coupon, 0, len(docs))
	for _, doc := range docs {
		coupons = append(coupons, doc.Data.toDomain(doc.ID))
	}

	hasMore := len(coupons) > pageSize
	if hasMore {
		coupons = coupons[:pageSize]
	}
	var nextToken string
	if hasMore && len(coupons) > 0 {
		encoded, err := encodeCouponPageToken(couponPageToken{Code: coupons[len(coupons)-1].Code})
		if err != nil {
			return domain.CursorPage[domain.Coupon]{}, pfirestore.WrapError("coupons.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Coupon]{
		Items:         coupons,
		NextPageToken: nextToken,
	}, nil
}

// couponCodeDocument reserves a redemption code for a single coupon.
type couponCodeDocument struct {
	CouponID  string    `firestore:"couponId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type couponDocument struct {
	Code          string    `firestore:"code"`
	Type          string    `firestore:"type"`
	Value         int64     `firestore:"value"`
	MaxUses       *int64    `firestore:"maxUses,omitempty"`
	UsedCount     int64     `firestore:"usedCount"`
	ValidFrom     time.Time `firestore:"validFrom"`
	ValidTo       time.Time `firestore:"validTo"`
	MinOrderValue int64     `firestore:"minOrderValue,omitempty"`
	IsActive      bool      `firestore:"isActive"`
	UpdatedAt     time.Time `firestore:"updatedAt,omitempty"`
}

func newCouponDocument(coupon domain.Coupon) couponDocument {
	doc := couponDocument{
		Code:          strings.TrimSpace(coupon.Code),
		Type:          string(coupon.Type),
		Value:         coupon.Value,
		UsedCount:     coupon.UsedCount,
		ValidFrom:     coupon.ValidFrom.UTC(),
		ValidTo:       coupon.ValidTo.UTC(),
		MinOrderValue: coupon.MinOrderValue,
		IsActive:      coupon.IsActive,
	}
	if coupon.MaxUses != nil {
		max := *coupon.MaxUses
		doc.MaxUses = &max
	}
	return doc
}

func (d couponDocument) toDomain(id string) domain.Coupon {
	coupon := domain.Coupon{
		ID:            id,
		Code:          strings.TrimSpace(d.Code),
		Type:          domain.CouponType(d.Type),
		Value:         d.Value,
		UsedCount:     d.UsedCount,
		ValidFrom:     d.ValidFrom,
		ValidTo:       d.ValidTo,
		MinOrderValue: d.MinOrderValue,
		IsActive:      d.IsActive,
	}
	if d.MaxUses != nil {
		max := *d.MaxUses
		coupon.MaxUses = &max
	}
	return coupon
}

type couponPageToken struct {
	Code string
}

func encodeCouponPageToken(token couponPageToken) (string, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(token); err != nil {
		return "", fmt.Errorf("encode coupon page token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes.TrimSpace(buf.Bytes())), nil
}

func decodeCouponPageToken(encoded string) (*couponPageToken, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode coupon page token: %w", err)
	}
	var token couponPageToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode coupon page token json: %w", err)
	}
	return &token, nil
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)

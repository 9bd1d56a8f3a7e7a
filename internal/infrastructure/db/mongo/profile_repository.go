package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
	"github.com/justexisted/bonitaforward-identity/internal/core/ports"
)

const collectionProfiles = "profiles"

// Server error codes this repository maps onto the domain taxonomy.
// 13 is Unauthorized, 121 is DocumentValidationFailure; both mean the
// store's own rules rejected the write.
const (
	codeUnauthorized       = 13
	codeDocumentValidation = 121
)

// ProfileRepository implements ports.ProfileStore on MongoDB. The user id
// is the document _id, which is what makes insert-vs-update races
// detectable as duplicate key errors.
type ProfileRepository struct {
	col *mongo.Collection
}

// NewProfileRepository returns a ProfileStore backed by the profiles
// collection.
func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{col: db.Collection(collectionProfiles)}
}

// mongoResidency is the persistence shape of a residency verification.
type mongoResidency struct {
	IsResident bool      `bson:"is_resident"`
	Method     string    `bson:"method,omitempty"`
	Zip        string    `bson:"zip,omitempty"`
	VerifiedAt time.Time `bson:"verified_at"`
}

// mongoProfile is the persistence shape of a domain.Profile.
type mongoProfile struct {
	ID        string          `bson:"_id"`
	Email     string          `bson:"email"`
	Name      string          `bson:"name,omitempty"`
	Role      string          `bson:"role,omitempty"`
	Residency *mongoResidency `bson:"residency,omitempty"`
	CreatedAt time.Time       `bson:"created_at"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

// EnsureIndexes creates the secondary email index. Safe to call on every
// startup; index builds are idempotent.
func (r *ProfileRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_idx"),
	})
	if err != nil {
		return fmt.Errorf("ensure profile indexes: %w", err)
	}
	return nil
}

// ReadByID fetches the profile for a user id.
func (r *ProfileRepository) ReadByID(ctx context.Context, id string) (*domain.Profile, error) {
	var doc mongoProfile
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return doc.toDomain(), nil
}

// Insert creates a new profile row.
func (r *ProfileRepository) Insert(ctx context.Context, p *domain.Profile) error {
	_, err := r.col.InsertOne(ctx, fromDomain(p))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrProfileExists
		}
		if isPermissionDenied(err) {
			return fmt.Errorf("insert profile: %w", domain.ErrPermissionDenied)
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// Update applies the non-nil changes to an existing row.
func (r *ProfileRepository) Update(ctx context.Context, id string, changes ports.ProfileChanges) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if changes.Email != nil {
		set["email"] = *changes.Email
	}
	if changes.Name != nil {
		set["name"] = *changes.Name
	}
	if changes.Role != nil {
		set["role"] = string(*changes.Role)
	}
	if changes.Residency != nil {
		set["residency"] = residencyFromDomain(changes.Residency)
	}

	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if isPermissionDenied(err) {
			return fmt.Errorf("update profile: %w", domain.ErrPermissionDenied)
		}
		return fmt.Errorf("update profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// isPermissionDenied recognizes server-side rule rejections in the
// driver's layered error types.
func isPermissionDenied(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == codeUnauthorized || cmdErr.Code == codeDocumentValidation
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == codeUnauthorized || we.Code == codeDocumentValidation {
				return true
			}
		}
	}
	return false
}

func fromDomain(p *domain.Profile) mongoProfile {
	return mongoProfile{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Role:      string(p.Role),
		Residency: residencyFromDomain(p.Residency),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func residencyFromDomain(r *domain.ResidencyVerification) *mongoResidency {
	if r == nil {
		return nil
	}
	return &mongoResidency{
		IsResident: r.IsResident,
		Method:     r.Method,
		Zip:        r.Zip,
		VerifiedAt: r.VerifiedAt,
	}
}

func (d *mongoProfile) toDomain() *domain.Profile {
	p := &domain.Profile{
		ID:        d.ID,
		Email:     d.Email,
		Name:      d.Name,
		Role:      domain.ParseRole(d.Role),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.Residency != nil {
		p.Residency = &domain.ResidencyVerification{
			IsResident: d.Residency.IsResident,
			Method:     d.Residency.Method,
			Zip:        d.Residency.Zip,
			VerifiedAt: d.Residency.VerifiedAt,
		}
	}
	return p
}

package mongo

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/petclinic/auth-service/internal/core/domain"
)

func aliceDoc() bson.D {
	return bson.D{
		{Key: "_id", Value: "u-1"},
		{Key: "username", Value: "alice"},
		{Key: "email", Value: "alice@example.com"},
		{Key: "password_hash", Value: "$2a$10$hash"},
		{Key: "roles", Value: bson.A{domain.RoleOwner}},
		{Key: "verified", Value: true},
		{Key: "disabled", Value: false},
		{Key: "created_at", Value: int64(1700000000)},
		{Key: "updated_at", Value: int64(1700000000)},
	}
}

func TestUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find by email", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "petclinic.users", mtest.FirstBatch, aliceDoc()))

		u, err := repo.FindByEmail(context.Background(), "alice@example.com")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if u.ID != "u-1" || u.Username != "alice" || !u.Verified {
			t.Fatalf("unexpected user %+v", u)
		}
		if len(u.Roles) != 1 || u.Roles[0] != domain.RoleOwner {
			t.Fatalf("unexpected roles %v", u.Roles)
		}
		if u.CreatedAt.Unix() != 1700000000 {
			t.Fatalf("unexpected created_at %v", u.CreatedAt)
		}
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "petclinic.users", mtest.FirstBatch))

		if _, err := repo.FindByUsername(context.Background(), "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	mt.Run("duplicate key", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: petclinic.users index: email_1",
		}))

		_, err := repo.Create(context.Background(), &domain.User{ID: "u-2", Username: "alice", Email: "alice@example.com"})
		if !errors.Is(err, domain.ErrUserExists) {
			t.Fatalf("expected ErrUserExists, got %v", err)
		}
	})

	mt.Run("set verified returns updated document", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: aliceDoc()}))

		u, err := repo.SetVerified(context.Background(), "u-1")
		if err != nil {
			t.Fatalf("set verified: %v", err)
		}
		if u.ID != "u-1" || !u.Verified {
			t.Fatalf("unexpected user %+v", u)
		}
	})

	mt.Run("update missing user", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		if _, err := repo.SetDisabled(context.Background(), "missing", true); !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	mt.Run("delete missing user", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	mt.Run("list", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		bob := bson.D{{Key: "_id", Value: "u-3"}, {Key: "username", Value: "alfred"}, {Key: "email", Value: "alfred@example.com"}}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "petclinic.users", mtest.FirstBatch, bob, aliceDoc()))

		users, err := repo.List(context.Background(), domain.UserFilter{UsernameContains: "al"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(users) != 2 || users[0].Username != "alfred" {
			t.Fatalf("unexpected users %+v", users)
		}
	})
}

package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// migration is a named, idempotent schema step. The name doubles as the index
// name so ensureIndex can check for it before creating anything.
type migration struct {
	name       string
	collection string
	model      mongo.IndexModel
}

var migrations = []migration{
	{
		name:       "accounts_unique_email",
		collection: colAccounts,
		model: mongo.IndexModel{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("accounts_unique_email").
				SetUnique(true).
				SetCollation(caseInsensitive),
		},
	},
	{
		name:       "accounts_unique_email_normalised",
		collection: colAccounts,
		model: mongo.IndexModel{
			Keys: bson.D{{Key: "email_normalised", Value: 1}},
			Options: options.Index().
				SetName("accounts_unique_email_normalised").
				SetUnique(true).
				SetCollation(caseInsensitive),
		},
	},
	{
		name:       "accounts_deletion_token",
		collection: colAccounts,
		model: mongo.IndexModel{
			Keys: bson.D{{Key: "deletion.token", Value: 1}},
			Options: options.Index().
				SetName("accounts_deletion_token").
				SetSparse(true),
		},
	},
	{
		name:       "sessions_unique_token",
		collection: colSessions,
		model: mongo.IndexModel{
			Keys: bson.D{{Key: "token", Value: 1}},
			Options: options.Index().
				SetName("sessions_unique_token").
				SetUnique(true),
		},
	},
	{
		name:       "sessions_user_id",
		collection: colSessions,
		model: mongo.IndexModel{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetName("sessions_user_id"),
		},
	},
	{
		name:       "mfa_tickets_unique_token",
		collection: colTickets,
		model: mongo.IndexModel{
			Keys: bson.D{{Key: "token", Value: 1}},
			Options: options.Index().
				SetName("mfa_tickets_unique_token").
				SetUnique(true),
		},
	},
}

// Migrate creates the indices the engine relies on. Safe to run on every
// startup; already-applied steps are skipped.
func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if err := s.ensureIndex(ctx, m.collection, m.name, m.model); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}

// ensureIndex creates the index unless one with the same name already exists.
func (s *Store) ensureIndex(ctx context.Context, collection, name string, model mongo.IndexModel) error {
	col := s.db.Collection(collection)

	cursor, err := col.Indexes().List(ctx)
	if err != nil {
		return err
	}
	var existing []bson.M
	if err := cursor.All(ctx, &existing); err != nil {
		return err
	}
	for _, idx := range existing {
		if idx["name"] == name {
			return nil
		}
	}

	_, err = col.Indexes().CreateOne(ctx, model)
	return err
}

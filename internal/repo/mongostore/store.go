// Package mongostore is the MongoDB backend of the membership and role
// stores. Every read-modify-write is a single conditional update on one
// document, so the server's per-document atomicity replaces SQL transactions.
//
// Layout:
//
//	chats  {_id: chat_id, with_handle: [{user_id, handle}], without_handle: [{user_id, display_name}], created_at}
//	users  {_id: user_id, display_name}
//	roles  {_id: name, member_ids: [user_id], created_at}
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Tensaey-sol/tag-bot/internal/domain"
)

// Store implements the membership and role repositories on MongoDB.
type Store struct {
	client *mongo.Client
	chats  *mongo.Collection
	users  *mongo.Collection
	roles  *mongo.Collection
}

type chatDoc struct {
	ID            int64           `bson:"_id"`
	WithHandle    []domain.Member `bson:"with_handle"`
	WithoutHandle []domain.Member `bson:"without_handle"`
	CreatedAt     time.Time       `bson:"created_at"`
}

type userDoc struct {
	ID          int64  `bson:"_id"`
	DisplayName string `bson:"display_name"`
}

type roleDoc struct {
	Name      string    `bson:"_id"`
	MemberIDs []int64   `bson:"member_ids"`
	CreatedAt time.Time `bson:"created_at"`
}

// Connect dials uri, verifies the deployment with a ping and returns a store
// bound to the named database.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s := New(client.Database(database))
	s.client = client
	return s, nil
}

// New returns a store over an already connected database.
func New(db *mongo.Database) *Store {
	return &Store{
		chats: db.Collection("chats"),
		users: db.Collection("users"),
		roles: db.Collection("roles"),
	}
}

// Ping checks the deployment is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.chats.Database().Client().Ping(ctx, nil)
}

// Close disconnects the client created by Connect. It is a no-op for stores
// built with New.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureChat(ctx context.Context, chatID int64) error {
	_, err := s.chats.UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{"$setOnInsert": bson.M{
			"with_handle":    bson.A{},
			"without_handle": bson.A{},
			"created_at":     time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// GetOrCreateChat upserts the chat document and returns its member lists.
func (s *Store) GetOrCreateChat(ctx context.Context, chatID int64) (domain.ChatMembers, error) {
	out := domain.ChatMembers{ChatID: chatID, WithHandle: []domain.Member{}, WithoutHandle: []domain.Member{}}

	var doc chatDoc
	err := s.chats.FindOneAndUpdate(ctx,
		bson.M{"_id": chatID},
		bson.M{"$setOnInsert": bson.M{
			"with_handle":    bson.A{},
			"without_handle": bson.A{},
			"created_at":     time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return out, err
	}
	if doc.WithHandle != nil {
		out.WithHandle = doc.WithHandle
	}
	if doc.WithoutHandle != nil {
		out.WithoutHandle = doc.WithoutHandle
	}
	return out, nil
}

// AddChatMember pushes m onto the matching list only if neither list holds
// its id and, for a handle, the handle list does not hold the handle.
func (s *Store) AddChatMember(ctx context.Context, chatID int64, m domain.Member) error {
	if err := s.ensureChat(ctx, chatID); err != nil {
		return err
	}

	filter := bson.M{
		"_id":                    chatID,
		"with_handle.user_id":    bson.M{"$ne": m.UserID},
		"without_handle.user_id": bson.M{"$ne": m.UserID},
	}
	field := "without_handle"
	entry := domain.Member{UserID: m.UserID, DisplayName: m.DisplayName}
	if m.Handle != "" {
		filter["with_handle.handle"] = bson.M{"$ne": m.Handle}
		field = "with_handle"
		entry = domain.Member{UserID: m.UserID, Handle: m.Handle}
	}

	res, err := s.chats.UpdateOne(ctx, filter, bson.M{"$push": bson.M{field: entry}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrAlreadyPresent
	}
	return nil
}

// RemoveChatMember pulls the member matching userID (either list) or handle
// (handle list).
func (s *Store) RemoveChatMember(ctx context.Context, chatID, userID int64, handle string) error {
	if err := s.ensureChat(ctx, chatID); err != nil {
		return err
	}

	match := bson.A{
		bson.M{"with_handle.user_id": userID},
		bson.M{"without_handle.user_id": userID},
	}
	pullHandle := bson.M{"user_id": userID}
	if handle != "" {
		match = append(match, bson.M{"with_handle.handle": handle})
		pullHandle = bson.M{"$or": bson.A{bson.M{"user_id": userID}, bson.M{"handle": handle}}}
	}

	res, err := s.chats.UpdateOne(ctx,
		bson.M{"_id": chatID, "$or": match},
		bson.M{"$pull": bson.M{
			"with_handle":    pullHandle,
			"without_handle": bson.M{"user_id": userID},
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotPresent
	}
	return nil
}

// CreateRole inserts a role document keyed by name.
func (s *Store) CreateRole(ctx context.Context, name string) error {
	_, err := s.roles.InsertOne(ctx, roleDoc{Name: name, MemberIDs: []int64{}, CreatedAt: time.Now().UTC()})
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrRoleExists
	}
	return err
}

// DeleteRole removes the role document. User documents are kept.
func (s *Store) DeleteRole(ctx context.Context, name string) error {
	res, err := s.roles.DeleteOne(ctx, bson.M{"_id": name})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrRoleNotFound
	}
	return nil
}

func (s *Store) findRole(ctx context.Context, name string) (*roleDoc, error) {
	var doc roleDoc
	err := s.roles.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// AddRoleMember upserts the user directory entry and adds its id to the
// role if absent.
func (s *Store) AddRoleMember(ctx context.Context, name string, u domain.User) error {
	if _, err := s.findRole(ctx, name); err != nil {
		return err
	}
	if _, err := s.users.UpdateOne(ctx,
		bson.M{"_id": u.ID},
		bson.M{"$set": bson.M{"display_name": u.DisplayName}},
		options.Update().SetUpsert(true),
	); err != nil {
		return err
	}

	res, err := s.roles.UpdateOne(ctx,
		bson.M{"_id": name, "member_ids": bson.M{"$ne": u.ID}},
		bson.M{"$push": bson.M{"member_ids": u.ID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	// the role may have been deleted since the first lookup
	if _, err := s.findRole(ctx, name); err != nil {
		return err
	}
	return domain.ErrAlreadyMember
}

// RemoveRoleMember pulls userID from the role.
func (s *Store) RemoveRoleMember(ctx context.Context, name string, userID int64) error {
	res, err := s.roles.UpdateOne(ctx,
		bson.M{"_id": name, "member_ids": userID},
		bson.M{"$pull": bson.M{"member_ids": userID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := s.findRole(ctx, name); err != nil {
		return err
	}
	return domain.ErrNotMember
}

func (s *Store) lookupUsers(ctx context.Context, ids []int64) (map[int64]*domain.User, error) {
	out := make(map[int64]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = &domain.User{ID: d.ID, DisplayName: d.DisplayName}
	}
	return out, nil
}

func refs(ids []int64, users map[int64]*domain.User) []domain.MemberRef {
	out := make([]domain.MemberRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.MemberRef{UserID: id, User: users[id]})
	}
	return out
}

// ListRoleMembers resolves the role's member ids against the users collection.
func (s *Store) ListRoleMembers(ctx context.Context, name string) ([]domain.MemberRef, error) {
	r, err := s.findRole(ctx, name)
	if err != nil {
		return nil, err
	}
	users, err := s.lookupUsers(ctx, r.MemberIDs)
	if err != nil {
		return nil, err
	}
	return refs(r.MemberIDs, users), nil
}

// ListRoles returns all roles ordered by name with resolved members.
func (s *Store) ListRoles(ctx context.Context) ([]domain.RoleSummary, error) {
	cur, err := s.roles.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []roleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.RoleSummary, 0, len(docs))
	if len(docs) == 0 {
		return out, nil
	}

	seen := map[int64]struct{}{}
	var ids []int64
	for _, d := range docs {
		for _, id := range d.MemberIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	users, err := s.lookupUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		out = append(out, domain.RoleSummary{Name: d.Name, Members: refs(d.MemberIDs, users)})
	}
	return out, nil
}

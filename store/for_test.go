package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/encryption"
	"github.com/alwitt/covault/models"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

// utNotification one captured notification
type utNotification struct {
	UserID   string
	Kind     string
	Metadata map[string]string
}

// utNotifier Notifier fake capturing every delivery
type utNotifier struct {
	lock   sync.Mutex
	events []utNotification
}

func (n *utNotifier) Send(
	_ context.Context, userID string, kind string, metadata map[string]string,
) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.events = append(n.events, utNotification{UserID: userID, Kind: kind, Metadata: metadata})
	return nil
}

func (n *utNotifier) ofKind(kind string) []utNotification {
	n.lock.Lock()
	defer n.lock.Unlock()
	matched := []utNotification{}
	for _, event := range n.events {
		if event.Kind == kind {
			matched = append(matched, event)
		}
	}
	return matched
}

func (n *utNotifier) reset() {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.events = nil
}

// utIdentity Identity fake backed by an in-memory user table
type utIdentity struct {
	users map[string]models.User
}

func (i *utIdentity) register(user models.User) {
	i.users[user.ID] = user
}

func (i *utIdentity) ResolveUserByID(_ context.Context, id string) (models.User, error) {
	user, ok := i.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s unknown", id)
	}
	return user, nil
}

func (i *utIdentity) ResolveUserByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range i.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, fmt.Errorf("email %s unknown", email)
}

// utStorage Storage fake backed by an in-memory object map
type utStorage struct {
	objects map[string][]byte
}

func (s *utStorage) Put(_ context.Context, objectKey string, data []byte) (string, error) {
	s.objects[objectKey] = data
	return objectKey, nil
}

func (s *utStorage) Delete(_ context.Context, objectKey string) (bool, error) {
	_, existed := s.objects[objectKey]
	delete(s.objects, objectKey)
	return existed, nil
}

func (s *utStorage) PresignedURL(
	_ context.Context, objectKey string, ttl time.Duration,
) (string, error) {
	return fmt.Sprintf("https://storage.ut/%s?expiry=%d", objectKey, int(ttl.Seconds())), nil
}

// utTestEnv one fully wired controller set over a throwaway SQLite instance
type utTestEnv struct {
	persistence db.Client
	cipher      encryption.CipherEngine
	notifier    *utNotifier
	identity    *utIdentity
	storage     *utStorage

	vaults      *vaultManager
	memberships *membershipManager
	invites     *inviteManager
	items       *itemManager
	accounts    *accountManager

	frozenNow *time.Time
}

// timeNow the controllers' clock. Real time unless frozen by the test.
func (e *utTestEnv) timeNow() time.Time {
	if e.frozenNow != nil {
		return *e.frozenNow
	}
	return time.Now()
}

func (e *utTestEnv) freezeTime(at time.Time) {
	e.frozenNow = &at
}

func newUTTestEnv(assert *assert.Assertions) *utTestEnv {
	ctx := context.Background()

	testDB := fmt.Sprintf("/tmp/covault_ut_%s.db", ulid.Make().String())
	persistence, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)
	assert.Nil(persistence.RunSQLInTransaction(ctx, db.DefineTables))

	cipher, err := encryption.NewCipherEngine(ctx, encryption.CipherEngineParams{
		ServerSecret: []byte("unit-test-server-secret-0123456789abcdef"),
	})
	assert.Nil(err)

	env := &utTestEnv{
		persistence: persistence,
		cipher:      cipher,
		notifier:    &utNotifier{},
		identity:    &utIdentity{users: map[string]models.User{}},
		storage:     &utStorage{objects: map[string][]byte{}},
	}

	core := func(component string) managerCore {
		instance := newManagerCore(component, persistence, cipher, env.notifier, env.identity)
		instance.nowFn = env.timeNow
		return instance
	}
	env.vaults = &vaultManager{managerCore: core("vault-manager")}
	env.memberships = &membershipManager{managerCore: core("membership-manager")}
	env.invites = &inviteManager{managerCore: core("invite-manager")}
	env.items = &itemManager{managerCore: core("item-manager"), storage: env.storage}
	env.accounts = &accountManager{managerCore: core("account-manager")}

	return env
}

// registerUser define one identity record
func (e *utTestEnv) registerUser(id string, email string) models.User {
	user := models.User{ID: id, Email: email, Name: id}
	e.identity.register(user)
	return user
}

// addMember insert a membership directly at the persistence layer
func (e *utTestEnv) addMember(
	assert *assert.Assertions,
	vaultID string,
	userID string,
	privilege models.MemberPrivilegeENUMType,
) models.Member {
	var member models.Member
	assert.Nil(e.persistence.UseDatabaseInTransaction(
		context.Background(), func(ctx context.Context, dbClient db.Database) error {
			var err error
			member, err = dbClient.DefineNewMember(
				ctx, vaultID, userID, privilege, "ut-fixture", e.timeNow(),
			)
			return err
		},
	))
	return member
}

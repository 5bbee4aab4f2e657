package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-banking/security"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

// WithCipher seals connection tokens at rest. Without it tokens are stored
// as plaintext.
func WithCipher(cipher security.Cipher) FactoryOption {
	return func(f *RepositoryFactory) {
		if cipher != nil {
			f.cipher = cipher
		}
	}
}

type RepositoryFactory struct {
	db     *bun.DB
	cipher security.Cipher

	connectionStore  *ConnectionStore
	accountStore     *AccountStore
	transactionStore *TransactionStore
	institutionStore *InstitutionStore
	syncJobStore     *SyncJobStore
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{cipher: security.PlaintextCipher{}}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB, such as a
// go-persistence-bun client.
func (f *RepositoryFactory) BuildStores(persistenceClient any) (*RepositoryFactory, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.connectionStore != nil && f.syncJobStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ConnectionStore() *ConnectionStore {
	if f == nil {
		return nil
	}
	return f.connectionStore
}

func (f *RepositoryFactory) AccountStore() *AccountStore {
	if f == nil {
		return nil
	}
	return f.accountStore
}

func (f *RepositoryFactory) TransactionStore() *TransactionStore {
	if f == nil {
		return nil
	}
	return f.transactionStore
}

func (f *RepositoryFactory) InstitutionStore() *InstitutionStore {
	if f == nil {
		return nil
	}
	return f.institutionStore
}

func (f *RepositoryFactory) SyncJobStore() *SyncJobStore {
	if f == nil {
		return nil
	}
	return f.syncJobStore
}

func (f *RepositoryFactory) initStores() error {
	var err error
	if f.connectionStore, err = NewConnectionStore(f.db, f.cipher); err != nil {
		return err
	}
	if f.accountStore, err = NewAccountStore(f.db); err != nil {
		return err
	}
	if f.transactionStore, err = NewTransactionStore(f.db); err != nil {
		return err
	}
	if f.institutionStore, err = NewInstitutionStore(f.db); err != nil {
		return err
	}
	if f.syncJobStore, err = NewSyncJobStore(f.db); err != nil {
		return err
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

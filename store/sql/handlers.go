package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func connectionHandlers() repository.ModelHandlers[*connectionRecord] {
	return repository.ModelHandlers[*connectionRecord]{
		NewRecord: func() *connectionRecord {
			return &connectionRecord{}
		},
		GetID: func(record *connectionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *connectionRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *connectionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func syncJobHandlers() repository.ModelHandlers[*syncJobRecord] {
	return repository.ModelHandlers[*syncJobRecord]{
		NewRecord: func() *syncJobRecord {
			return &syncJobRecord{}
		},
		GetID: func(record *syncJobRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *syncJobRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *syncJobRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

// Accounts, transactions and institutions are keyed by canonical
// provider-prefixed ids, not UUIDs. Their handlers derive a stable UUID from
// the id so repository bookkeeping never assigns a fresh one.

func accountHandlers() repository.ModelHandlers[*accountRecord] {
	return repository.ModelHandlers[*accountRecord]{
		NewRecord: func() *accountRecord {
			return &accountRecord{}
		},
		GetID: func(record *accountRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return canonicalUUID(record.ID)
		},
		SetID: func(*accountRecord, uuid.UUID) {},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *accountRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func transactionHandlers() repository.ModelHandlers[*transactionRecord] {
	return repository.ModelHandlers[*transactionRecord]{
		NewRecord: func() *transactionRecord {
			return &transactionRecord{}
		},
		GetID: func(record *transactionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return canonicalUUID(record.ID)
		},
		SetID: func(*transactionRecord, uuid.UUID) {},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *transactionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func institutionHandlers() repository.ModelHandlers[*institutionRecord] {
	return repository.ModelHandlers[*institutionRecord]{
		NewRecord: func() *institutionRecord {
			return &institutionRecord{}
		},
		GetID: func(record *institutionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return canonicalUUID(record.ID)
		},
		SetID: func(*institutionRecord, uuid.UUID) {},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *institutionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

var canonicalNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/goliatone/go-banking"))

func canonicalUUID(id string) uuid.UUID {
	id = strings.TrimSpace(id)
	if id == "" {
		return uuid.Nil
	}
	return uuid.NewSHA1(canonicalNamespace, []byte(id))
}

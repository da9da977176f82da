package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type ownerKind uint8

const (
	ownerUser ownerKind = iota + 1
	ownerSystem
)

const systemOwnerKey = "system"

// Owner is either a real user or the reserved system identity.
// The zero value is invalid.
type Owner struct {
	kind   ownerKind
	userID uuid.UUID
}

func UserOwner(id uuid.UUID) Owner {
	return Owner{kind: ownerUser, userID: id}
}

func SystemOwner() Owner {
	return Owner{kind: ownerSystem}
}

func (o Owner) IsValid() bool { return o.kind == ownerUser || o.kind == ownerSystem }

// Key is the storage form: "system" or "user:<uuid>".
func (o Owner) Key() string {
	switch o.kind {
	case ownerSystem:
		return systemOwnerKey
	case ownerUser:
		return "user:" + o.userID.String()
	}
	return ""
}

func (o Owner) String() string { return o.Key() }

func ParseOwner(key string) (Owner, error) {
	if key == systemOwnerKey {
		return SystemOwner(), nil
	}
	raw, ok := strings.CutPrefix(key, "user:")
	if !ok {
		return Owner{}, fmt.Errorf("unknown owner key %q", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return Owner{}, fmt.Errorf("owner key %q: %w", key, err)
	}
	return UserOwner(id), nil
}

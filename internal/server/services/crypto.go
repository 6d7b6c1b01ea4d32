package services

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

// Sealer is the crypto boundary. *cryptox.Cipher implements it.
type Sealer interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(blob []byte) ([]byte, error)
}

func sealPayload(s Sealer, p models.SecretPayload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(raw)
	return s.Encrypt(raw)
}

func openPayload(s Sealer, blob []byte) (*models.SecretPayload, error) {
	raw, err := s.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(raw)

	var p models.SecretPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: payload is not a secret record", common.ErrIntegrity)
	}
	return &p, nil
}

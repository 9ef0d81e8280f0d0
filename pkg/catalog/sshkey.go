package catalog

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// SeedKeyName is the SSH key entity Seed creates.
const SeedKeyName = "ssh-key"

// EnsureSSHKey returns the authorized_keys line of the keypair at path,
// generating an ed25519 keypair when path does not exist yet. The public
// key is written next to it with a .pub suffix.
func EnsureSSHKey(path string) (publicKey string, generated bool, err error) {
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path + ".pub")
		if err != nil {
			return "", false, fmt.Errorf("failed to read public key: %w", err)
		}
		if _, _, _, _, err := ssh.ParseAuthorizedKey(data); err != nil {
			return "", false, fmt.Errorf("failed to parse public key %s.pub: %w", path, err)
		}
		return string(bytes.TrimSpace(data)), false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, err
	}

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", false, fmt.Errorf("failed to generate keypair: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(privKey, "")
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal private key: %w", err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		return "", false, fmt.Errorf("failed to write private key: %w", err)
	}

	sshPubKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to create SSH public key: %w", err)
	}
	line := ssh.MarshalAuthorizedKey(sshPubKey)
	if err := os.WriteFile(path+".pub", line, 0644); err != nil {
		return "", false, fmt.Errorf("failed to write public key: %w", err)
	}
	return string(bytes.TrimSpace(line)), true, nil
}

// SetSeedKey puts publicKey on the seeded SSH key.
func SetSeedKey(s *store.Store, publicKey string) error {
	return s.Save("ssh_keys", store.Entity{"public_key": publicKey}, store.Options{Key: SeedKeyName})
}

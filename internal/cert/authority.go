// Package cert выпускает подписанные сертификаты санитизации
// и ведёт неизменяемый журнал аудита.
package cert

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var ErrInvalidSignature = errors.New("подпись сертификата недействительна")

// authorityFile формат хранения ключевой пары на диске
type authorityFile struct {
	PrivateKeyPEM string    `json:"private_key_pem"`
	PublicKeyPEM  string    `json:"public_key_pem"`
	CreatedAt     time.Time `json:"created_at"`
}

// Authority подписывает сертификаты ключом RSA-2048.
// Подпись — PKCS#1 v1.5 поверх SHA-256.
type Authority struct {
	key    *rsa.PrivateKey
	Issuer string
	Org    string
}

// LoadOrCreateAuthority загружает ключевую пару или создаёт новую.
// Файл ключа создаётся с правами 0600: приватный ключ не должен
// читаться другими пользователями.
func LoadOrCreateAuthority(path, issuer, org string) (*Authority, error) {
	if data, err := os.ReadFile(path); err == nil {
		return loadAuthority(data, issuer, org)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("не удалось прочитать ключ %s: %w", path, err)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("не удалось сгенерировать ключ RSA: %w", err)
	}

	if err := saveAuthority(path, key); err != nil {
		return nil, err
	}
	return &Authority{key: key, Issuer: issuer, Org: org}, nil
}

func loadAuthority(data []byte, issuer, org string) (*Authority, error) {
	var file authorityFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("некорректный файл ключа: %w", err)
	}
	block, _ := pem.Decode([]byte(file.PrivateKeyPEM))
	if block == nil {
		return nil, errors.New("файл ключа не содержит PEM-блока")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("не удалось разобрать приватный ключ: %w", err)
	}
	return &Authority{key: key, Issuer: issuer, Org: org}, nil
}

func saveAuthority(path string, key *rsa.PrivateKey) error {
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey),
	})
	file := authorityFile{
		PrivateKeyPEM: string(privPEM),
		PublicKeyPEM:  string(pubPEM),
		CreatedAt:     time.Now().UTC(),
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("не удалось сериализовать ключ: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("не удалось создать каталог ключа: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("не удалось сохранить ключ: %w", err)
	}
	return nil
}

// PublicKey возвращает открытый ключ для внешней проверки сертификатов
func (a *Authority) PublicKey() *rsa.PublicKey {
	return &a.key.PublicKey
}

func (a *Authority) sign(content []byte) ([]byte, error) {
	digest := sha256.Sum256(content)
	sig, err := rsa.SignPKCS1v15(rand.Reader, a.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("не удалось подписать сертификат: %w", err)
	}
	return sig, nil
}

func verifySignature(pub *rsa.PublicKey, content, sig []byte) error {
	digest := sha256.Sum256(content)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

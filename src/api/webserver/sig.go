package webserver

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// Wallet auth methods.
const (
	MethodEVM       = "evm"
	MethodSubstrate = "substrate"
)

var (
	errBadAddress   = errors.New("invalid address")
	errBadSignature = errors.New("signature verification failed")
	ss58Prefix      = []byte("SS58PRE")
)

// decodeSS58 converts a single-byte-prefix SS58 address to the raw 32-byte
// public key after checking its blake2b checksum. Hex keys are accepted as is.
func decodeSS58(addr string) ([]byte, error) {
	if strings.HasPrefix(addr, "0x") {
		return hex.DecodeString(addr[2:])
	}

	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 35 {
		return nil, fmt.Errorf("%w: ss58", errBadAddress)
	}
	sum := blake2b.Sum512(append(append([]byte{}, ss58Prefix...), raw[:33]...))
	if !bytes.Equal(sum[:2], raw[33:]) {
		return nil, fmt.Errorf("%w: ss58 checksum", errBadAddress)
	}
	return raw[1:33], nil
}

func strip0x(s string) string {
	if len(s) > 1 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}

func verifySignature(method, addr, sigHex, nonce string) error {
	switch method {
	case MethodEVM:
		return verifyEVM(addr, sigHex, nonce)
	case MethodSubstrate:
		return verifySr25519(addr, sigHex, nonce)
	}
	return fmt.Errorf("unknown method %q", method)
}

// verifyEVM checks an EIP-191 personal_sign signature over nonce.
func verifyEVM(addr, sigHex, nonce string) error {
	if !common.IsHexAddress(addr) {
		return errBadAddress
	}
	sig, err := hex.DecodeString(strip0x(sigHex))
	if err != nil {
		return err
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length: %d", len(sig))
	}
	// wallets return V as 27/28
	if sig[64] != 0 && sig[64] != 1 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(nonce)), sig)
	if err != nil {
		return fmt.Errorf("failed to recover public key: %w", err)
	}
	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(addr) {
		return errBadSignature
	}
	return nil
}

func verifySr25519(addr, sigHex, nonce string) error {
	pubKeyBytes, err := decodeSS58(addr)
	if err != nil {
		return err
	}
	if len(pubKeyBytes) != 32 {
		return fmt.Errorf("invalid public key length: %d", len(pubKeyBytes))
	}

	sigBytes, err := hex.DecodeString(strip0x(sigHex))
	if err != nil {
		return err
	}
	if len(sigBytes) != 64 {
		return fmt.Errorf("invalid signature length: %d", len(sigBytes))
	}

	var pkRaw [32]byte
	copy(pkRaw[:], pubKeyBytes)
	var sigRaw [64]byte
	copy(sigRaw[:], sigBytes)

	var pk schnorrkel.PublicKey
	if err = pk.Decode(pkRaw); err != nil {
		return err
	}

	var sig schnorrkel.Signature
	if err = sig.Decode(sigRaw); err != nil {
		return err
	}

	ctx := schnorrkel.NewSigningContext([]byte("substrate"), []byte(nonce))
	valid, err := pk.Verify(&sig, ctx)
	if err != nil {
		return err
	}
	if !valid {
		return errBadSignature
	}
	return nil
}

func issueJWT(addr string, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"addr": addr,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	return token.SignedString(secret)
}

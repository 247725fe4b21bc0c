package buildutil

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"filippo.io/edwards25519"
)

// sigMagic identifies a detached signature file on disk; "FIRS" packed
// little-endian, distinct from an Artifact's own magic number.
const sigMagic = 0x53524946

// Signature is the detached envelope written alongside a signed artifact:
// the Ed25519 signature bytes plus the per-build commitment point that
// binds the signature to the module's build id independently of the
// payload, so a signature cannot be replayed across two different builds
// that happen to produce byte-identical output.
type Signature struct {
	BuildID   [16]byte
	Commitment [32]byte
	SigBytes  [64]byte
}

// commitmentPoint derives a build-specific point on the curve from buildID
// by hashing it into a scalar and multiplying the Ed25519 base point,
// using filippo.io/edwards25519's scalar/point arithmetic directly rather
// than crypto/ed25519's opaque key API.
func commitmentPoint(buildID [16]byte) (*edwards25519.Point, error) {
	h := sha512.Sum512(buildID[:])
	scalar, err := edwards25519.NewScalar().SetUniformBytes(h[:])
	if err != nil {
		return nil, fmt.Errorf("buildutil: derive commitment scalar: %w", err)
	}
	return edwards25519.NewIdentityPoint().ScalarBaseMult(scalar), nil
}

// Sign signs art's payload digest with the Ed25519 private key read from
// keyPath (a raw 64-byte seed+public key pair, crypto/ed25519's standard
// on-disk form), and returns the detached signature carrying art's build
// commitment.
func Sign(art *Artifact, keyPath string) (*Signature, error) {
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("buildutil: read signing key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("buildutil: signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(keyBytes))
	}
	priv := ed25519.PrivateKey(keyBytes)

	point, err := commitmentPoint(art.BuildID)
	if err != nil {
		return nil, err
	}
	digest := Digest(art)

	message := make([]byte, 0, len(digest)+32)
	message = append(message, digest[:]...)
	message = append(message, point.Bytes()...)

	sig := ed25519.Sign(priv, message)

	out := &Signature{BuildID: art.BuildID}
	copy(out.Commitment[:], point.Bytes())
	copy(out.SigBytes[:], sig)
	return out, nil
}

// Verify checks sig against art using pubKey (a raw 32-byte Ed25519 public
// key), recomputing the same build commitment Sign embedded.
func Verify(art *Artifact, sig *Signature, pubKey ed25519.PublicKey) (bool, error) {
	point, err := commitmentPoint(art.BuildID)
	if err != nil {
		return false, err
	}
	if string(point.Bytes()) != string(sig.Commitment[:]) {
		return false, nil
	}
	digest := Digest(art)
	message := make([]byte, 0, len(digest)+32)
	message = append(message, digest[:]...)
	message = append(message, point.Bytes()...)
	return ed25519.Verify(pubKey, message, sig.SigBytes[:]), nil
}

// WriteSignature writes sig to path behind a magic/version header of its
// own (distinct from Artifact's), so a reader can tell the two file kinds
// apart before parsing either.
func WriteSignature(path string, sig *Signature) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(sigMagic)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(Version)); err != nil {
		return err
	}
	if _, err := f.Write(sig.BuildID[:]); err != nil {
		return err
	}
	if _, err := f.Write(sig.Commitment[:]); err != nil {
		return err
	}
	_, err = f.Write(sig.SigBytes[:])
	return err
}

// ReadSignature loads a signature previously written by WriteSignature.
func ReadSignature(path string) (*Signature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic, version uint32
	if err := binary.Read(f, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("buildutil: read signature magic: %w", err)
	}
	if magic != sigMagic {
		return nil, fmt.Errorf("buildutil: bad signature magic number %#x", magic)
	}
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("buildutil: read signature version: %w", err)
	}
	if version > Version {
		return nil, fmt.Errorf("buildutil: unsupported signature version %d", version)
	}

	sig := &Signature{}
	if _, err := io.ReadFull(f, sig.BuildID[:]); err != nil {
		return nil, fmt.Errorf("buildutil: read build id: %w", err)
	}
	if _, err := io.ReadFull(f, sig.Commitment[:]); err != nil {
		return nil, fmt.Errorf("buildutil: read commitment: %w", err)
	}
	if _, err := io.ReadFull(f, sig.SigBytes[:]); err != nil {
		return nil, fmt.Errorf("buildutil: read signature bytes: %w", err)
	}
	return sig, nil
}

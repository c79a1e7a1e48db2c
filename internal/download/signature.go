package download

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/gopenpgp/v2/crypto"

	"github.com/tsukumogami/embeddb/internal/distribution"
	"github.com/tsukumogami/embeddb/internal/log"
)

// maxSignatureSize caps the detached signature download.
const maxSignatureSize = 10 * 1024

// SignatureVerifier checks a downloaded archive against the detached PGP
// signature published next to it at <url>.sig. It satisfies store.Verifier.
type SignatureVerifier struct {
	keyRing    *crypto.KeyRing
	downloader *HTTPDownloader
	logger     log.Logger
}

// NewSignatureVerifier builds a verifier trusting the armored public keys
// in armoredKeys. Signatures are fetched with downloader.
func NewSignatureVerifier(armoredKeys []string, downloader *HTTPDownloader) (*SignatureVerifier, error) {
	if len(armoredKeys) == 0 {
		return nil, fmt.Errorf("no signing keys configured")
	}
	ring, err := crypto.NewKeyRing(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyring: %w", err)
	}
	for i, armored := range armoredKeys {
		key, err := crypto.NewKeyFromArmored(armored)
		if err != nil {
			return nil, fmt.Errorf("failed to parse signing key %d: %w", i+1, err)
		}
		if err := ring.AddKey(key); err != nil {
			return nil, fmt.Errorf("failed to add signing key %s: %w", FormatFingerprint(key.GetFingerprint()), err)
		}
	}
	return &SignatureVerifier{keyRing: ring, downloader: downloader, logger: downloader.logger}, nil
}

// LoadSignatureVerifier reads an armored key file, which may hold several
// concatenated public key blocks.
func LoadSignatureVerifier(keyFile string, downloader *HTTPDownloader) (*SignatureVerifier, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key file: %w", err)
	}
	return NewSignatureVerifier(splitArmoredKeys(string(data)), downloader)
}

const armorBegin = "-----BEGIN PGP PUBLIC KEY BLOCK-----"

func splitArmoredKeys(data string) []string {
	var keys []string
	for _, part := range strings.Split(data, armorBegin) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		keys = append(keys, armorBegin+part)
	}
	return keys
}

// Fingerprints lists the trusted key fingerprints.
func (v *SignatureVerifier) Fingerprints() []string {
	var fps []string
	for _, k := range v.keyRing.GetKeys() {
		fps = append(fps, FormatFingerprint(k.GetFingerprint()))
	}
	return fps
}

// Verify implements store.Verifier.
func (v *SignatureVerifier) Verify(ctx context.Context, pkg distribution.Package, archivePath string) error {
	if pkg.URL == "" {
		return fmt.Errorf("package %s has no URL to fetch a signature for", pkg.Path)
	}
	sigURL := pkg.URL + ".sig"
	v.logger.Debug("fetching signature", "url", log.SanitizeURL(sigURL))

	sig, err := v.downloader.fetchSmall(ctx, sigURL, maxSignatureSize)
	if err != nil {
		return fmt.Errorf("failed to fetch signature: %w", err)
	}
	return VerifyDetached(v.keyRing, archivePath, sig)
}

// VerifyDetached checks sig, armored or binary, over the file at path.
func VerifyDetached(ring *crypto.KeyRing, path string, sig []byte) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file for signature verification: %w", err)
	}

	signature, err := crypto.NewPGPSignatureFromArmored(string(sig))
	if err != nil {
		signature = crypto.NewPGPSignature(sig)
	}

	// verifyTime 0 accepts signatures regardless of key expiry.
	if err := ring.VerifyDetached(crypto.NewPlainMessage(data), signature, 0); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// FormatFingerprint groups a hex fingerprint in blocks of four.
func FormatFingerprint(fp string) string {
	fp = strings.ToUpper(fp)
	var b strings.Builder
	for i := 0; i < len(fp); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		end := i + 4
		if end > len(fp) {
			end = len(fp)
		}
		b.WriteString(fp[i:end])
	}
	return b.String()
}

// Package publish implements the publication planner (spec.md
// component F): it maps the logical CA/object tree onto a filesystem
// hierarchy reachable through the configured rsync base URI, seals
// each CA's manifest bottom-up, and emits the Trust Anchor Locator.
package publish

import (
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"rpkica/internal/asn1codec"
	"rpkica/internal/rpkica"
	"rpkica/internal/rpkierr"
	"rpkica/internal/sigobj"
)

// Plan drives one publication run for a TA's whole tree.
type Plan struct {
	TA         *rpkica.CA
	BaseURI    string
	OutputRoot string
	TALDir     string
}

// Stage materializes the TA's tree into a fresh staging directory
// under OutputRoot's parent, seals every CA's manifest bottom-up, and
// renames the staging directory onto OutputRoot (and, separately, the
// TAL staging directory onto TALDir) only once every CA has published
// successfully -- spec.md section 5's "materialize into a staging
// directory and rename atomically" guidance.
func (p *Plan) Stage() error {
	u, err := url.Parse(p.BaseURI)
	if err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, p.BaseURI, errors.Wrap(err, "parse base_uri"))
	}
	hostPath := filepath.Join(u.Host, filepath.FromSlash(u.Path))

	stagingRoot := p.OutputRoot + ".staging-" + uuid.NewString()
	hostPathDir := filepath.Join(stagingRoot, hostPath)
	if err := os.MkdirAll(hostPathDir, 0o755); err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, stagingRoot, err)
	}

	if err := publishCA(p.TA, p.BaseURI, hostPathDir); err != nil {
		return err
	}

	taCertPath := diskPath(hostPathDir, p.BaseURI, p.TA.CertURI())
	if err := writeFile(taCertPath, p.TA.CertDER()); err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, taCertPath, err)
	}

	talStaging := p.TALDir + ".staging-" + uuid.NewString()
	talPath := filepath.Join(talStaging, p.TA.CommonName+".tal")
	talBytes, err := buildTAL(p.TA)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(talStaging, 0o755); err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, talStaging, err)
	}
	if err := writeFile(talPath, talBytes); err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, talPath, err)
	}

	if err := os.RemoveAll(p.OutputRoot); err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, p.OutputRoot, err)
	}
	if err := os.Rename(stagingRoot, p.OutputRoot); err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, p.OutputRoot, err)
	}
	if err := os.RemoveAll(p.TALDir); err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, p.TALDir, err)
	}
	if err := os.Rename(talStaging, p.TALDir); err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, p.TALDir, err)
	}
	return nil
}

// diskPath translates a published rsync URI (always baseURI-prefixed)
// into its location under hostPathDir.
func diskPath(hostPathDir, baseURI, uri string) string {
	rel := strings.TrimPrefix(uri, baseURI)
	return filepath.Join(hostPathDir, filepath.FromSlash(rel))
}

// publishCA recurses bottom-up through ca's children, writes ca's own
// CRL and every direct child's certificate into ca's publication
// point, writes any EE signed objects ca has accumulated, and seals
// ca's manifest -- spec.md section 4.D's publish(root) algorithm.
func publishCA(ca *rpkica.CA, baseURI, hostPathDir string) error {
	own := diskPath(hostPathDir, baseURI, ca.PubPointURI())
	if err := os.MkdirAll(own, 0o755); err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, own, err)
	}

	for _, child := range ca.Children() {
		if child == ca {
			continue
		}
		if err := publishCA(child, baseURI, hostPathDir); err != nil {
			return err
		}
	}

	// publish writes the CA's latest CRL (spec.md section 4.D step 1);
	// it does not re-issue one -- the CA issues its own CRL at
	// self-issuance and on any explicit Revoke+IssueCRL call.
	crlDER := ca.CRLDER()
	crlPath := filepath.Join(own, "revoked.crl")
	if err := writeFile(crlPath, crlDER); err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, crlPath, err)
	}
	entries := []sigobj.ManifestFileEntry{fileEntry("revoked.crl", crlDER)}

	for _, child := range ca.Children() {
		if child == ca {
			continue
		}
		certPath := diskPath(hostPathDir, baseURI, child.CertURI())
		if err := writeFile(certPath, child.CertDER()); err != nil {
			return rpkierr.Wrap(rpkierr.KindIO, certPath, err)
		}
		entries = append(entries, fileEntry(child.CommonName+".cer", child.CertDER()))
	}

	for _, obj := range ca.Objects() {
		objPath := filepath.Join(own, obj.FileName)
		if err := writeFile(objPath, obj.DER); err != nil {
			return rpkierr.Wrap(rpkierr.KindIO, objPath, err)
		}
		entries = append(entries, fileEntry(obj.FileName, obj.DER))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	mft, err := ca.IssueManifest(entries)
	if err != nil {
		return err
	}
	mftPath := filepath.Join(own, "manifest.mft")
	if err := writeFile(mftPath, mft.DER); err != nil {
		return rpkierr.Wrap(rpkierr.KindIO, mftPath, err)
	}
	return nil
}

func fileEntry(name string, der []byte) sigobj.ManifestFileEntry {
	return sigobj.ManifestFileEntry{Name: name, Hash: sha256.Sum256(der)}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// buildTAL emits the RFC 7730-profile Trust Anchor Locator: the TA
// certificate's rsync URI, a blank line, then base64 of the TA's
// SubjectPublicKeyInfo DER wrapped at 64 columns (spec.md section 4.F,
// scenario S6).
func buildTAL(ta *rpkica.CA) ([]byte, error) {
	var cert asn1codec.Certificate
	if err := asn1codec.Decode(ta.CertDER(), &cert); err != nil {
		return nil, rpkierr.Wrap(rpkierr.KindEncoding, ta.CommonName, err)
	}
	spkiDER, err := asn1codec.Encode(cert.TBSCertificate.PublicKey)
	if err != nil {
		return nil, rpkierr.Wrap(rpkierr.KindEncoding, ta.CommonName, err)
	}

	var b strings.Builder
	b.WriteString(ta.CertURI())
	b.WriteString("\n\n")
	b.WriteString(wrapBase64(spkiDER, 64))
	b.WriteString("\n")
	return []byte(b.String()), nil
}

func wrapBase64(der []byte, width int) string {
	encoded := base64.StdEncoding.EncodeToString(der)
	var b strings.Builder
	for i := 0; i < len(encoded); i += width {
		end := i + width
		if end > len(encoded) {
			end = len(encoded)
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(encoded[i:end])
	}
	return b.String()
}

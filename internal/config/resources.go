package config

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"rpkica/internal/resources"
	"rpkica/internal/sigobj"
)

// ParseASResources parses a comma-separated list of AS tokens, each
// either a single id ("65000") or a min-max range ("65001-65010"),
// per spec.md section 6's ta_as_resources/ca_as_resources inputs. The
// top-level interface never emits "inherit" (spec.md section 1's
// non-goal on inherited resources at that layer).
func ParseASResources(spec string) (resources.ASResources, error) {
	var out resources.ASResources
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(tok, "-"); ok {
			min, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
			if err != nil {
				return resources.ASResources{}, errors.Wrapf(err, "AS range %q", tok)
			}
			max, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
			if err != nil {
				return resources.ASResources{}, errors.Wrapf(err, "AS range %q", tok)
			}
			out.Entries = append(out.Entries, resources.ASRangeEntry(min, max))
			continue
		}
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return resources.ASResources{}, errors.Wrapf(err, "AS id %q", tok)
		}
		out.Entries = append(out.Entries, resources.ASIDEntry(id))
	}
	if len(out.Entries) == 0 {
		return resources.ASResources{}, errors.New("empty AS resource list")
	}
	return out, nil
}

// ParseIPResources parses a list of CIDR prefixes ("10.0.0.0/8") or
// address ranges ("192.168.1.128-192.168.2.255") into separate IPv4
// and IPv6 families, per spec.md section 6's
// ta_ip_resources/ca_ip_resources inputs.
func ParseIPResources(entries []string) (v4, v6 *resources.IPFamily, err error) {
	var fam4, fam6 resources.IPFamily
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(e, "-"); ok {
			low, err := netip.ParseAddr(strings.TrimSpace(lo))
			if err != nil {
				return nil, nil, errors.Wrapf(err, "IP range %q", e)
			}
			high, err := netip.ParseAddr(strings.TrimSpace(hi))
			if err != nil {
				return nil, nil, errors.Wrapf(err, "IP range %q", e)
			}
			entry := resources.RangeEntry(low, high)
			if low.Is4() {
				fam4.Entries = append(fam4.Entries, entry)
			} else {
				fam6.Entries = append(fam6.Entries, entry)
			}
			continue
		}
		p, err := netip.ParsePrefix(e)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "IP prefix %q", e)
		}
		entry := resources.PrefixEntry(p)
		if p.Addr().Is4() {
			fam4.Entries = append(fam4.Entries, entry)
		} else {
			fam6.Entries = append(fam6.Entries, entry)
		}
	}
	if len(fam4.Entries) > 0 {
		v4 = &fam4
	}
	if len(fam6.Entries) > 0 {
		v6 = &fam6
	}
	return v4, v6, nil
}

// TAResources builds the resources.Set for the Trust Anchor
// certificate from TAASResources/TAIPResources.
func (s *Scenario) TAResources() (resources.Set, error) {
	return s.resourcesFrom(s.TAASResources, s.TAIPResources)
}

// CAResources builds the resources.Set for the subordinate CA
// certificate from CAASResources/CAIPResources.
func (s *Scenario) CAResources() (resources.Set, error) {
	return s.resourcesFrom(s.CAASResources, s.CAIPResources)
}

func (s *Scenario) resourcesFrom(asSpec string, ipSpec []string) (resources.Set, error) {
	as, err := ParseASResources(asSpec)
	if err != nil {
		return resources.Set{}, err
	}
	v4, v6, err := ParseIPResources(ipSpec)
	if err != nil {
		return resources.Set{}, err
	}
	return resources.Set{IPv4: v4, IPv6: v6, AS: &as}, nil
}

// ROAContent builds the sigobj.ROA content value from ROAASID/
// ROANetworks.
func (s *Scenario) ROAContent() (sigobj.ROA, error) {
	var networks []sigobj.ROANetwork
	for _, n := range s.ROANetworks {
		p, err := netip.ParsePrefix(n.Prefix)
		if err != nil {
			return sigobj.ROA{}, errors.Wrapf(err, "ROA network prefix %q", n.Prefix)
		}
		version := 4
		if !p.Addr().Is4() {
			version = 6
		}
		maxLength := -1
		if n.MaxLength != nil {
			maxLength = *n.MaxLength
		}
		networks = append(networks, sigobj.ROANetwork{
			Prefix:    resources.PrefixEntry(p),
			Version:   version,
			MaxLength: maxLength,
		})
	}
	return sigobj.ROA{ASID: s.ROAASID, Networks: networks}, nil
}

// GhostbustersRecord builds the sigobj.GhostbustersRecord content
// value from the scenario's gbr_* fields, when GBRFullName is set.
func (s *Scenario) GhostbustersRecord() sigobj.GhostbustersRecord {
	return sigobj.GhostbustersRecord{
		FullName: s.GBRFullName,
		Org:      s.GBROrg,
		Address:  s.GBRAddress,
		Tel:      s.GBRTel,
		Email:    s.GBREmail,
	}
}

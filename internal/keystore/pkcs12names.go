package keystore

import (
	"encoding/asn1"
	"errors"
	"strings"
	"unicode/utf16"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidData                = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidKeyBag              = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 1}
	oidPKCS8ShroudedKeyBag = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 2}
	oidFriendlyName        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 20}
)

var errMalformedPFX = errors.New("malformed PKCS12 structure")

const tagBMPString = casn1.Tag(30)

var tagExplicit0 = casn1.Tag(0).Constructed().ContextSpecific()

// keyBagNames returns the friendlyName attributes of the private key bags
// held in unencrypted safe contents. Key bag attributes sit outside the
// shrouded key, so no password is needed. Bags inside encrypted safe contents
// are not visited.
func keyBagNames(data []byte) ([]string, error) {
	input := cryptobyte.String(data)
	var pfx, authSafe cryptobyte.String
	var version int
	if !input.ReadASN1(&pfx, casn1.SEQUENCE) ||
		!pfx.ReadASN1Integer(&version) ||
		!pfx.ReadASN1(&authSafe, casn1.SEQUENCE) {
		return nil, errMalformedPFX
	}

	content, isData, err := readContentInfo(authSafe)
	if err != nil {
		return nil, err
	}
	if !isData {
		return nil, nil
	}

	safesInput := cryptobyte.String(content)
	var safes cryptobyte.String
	if !safesInput.ReadASN1(&safes, casn1.SEQUENCE) {
		return nil, errMalformedPFX
	}

	var names []string
	for !safes.Empty() {
		var contentInfo cryptobyte.String
		if !safes.ReadASN1(&contentInfo, casn1.SEQUENCE) {
			return nil, errMalformedPFX
		}
		contents, isData, err := readContentInfo(contentInfo)
		if err != nil {
			return nil, err
		}
		if !isData {
			continue
		}
		bagNames, err := safeContentsKeyNames(contents)
		if err != nil {
			return nil, err
		}
		names = append(names, bagNames...)
	}
	return names, nil
}

// readContentInfo returns the octets of a pkcs7-data ContentInfo. Other
// content types report isData=false.
func readContentInfo(ci cryptobyte.String) ([]byte, bool, error) {
	var contentType asn1.ObjectIdentifier
	if !ci.ReadASN1ObjectIdentifier(&contentType) {
		return nil, false, errMalformedPFX
	}
	if !contentType.Equal(oidData) {
		return nil, false, nil
	}

	var explicit, octets cryptobyte.String
	if !ci.ReadASN1(&explicit, tagExplicit0) || !explicit.ReadASN1(&octets, casn1.OCTET_STRING) {
		return nil, false, errMalformedPFX
	}
	return octets, true, nil
}

func safeContentsKeyNames(data []byte) ([]string, error) {
	input := cryptobyte.String(data)
	var bags cryptobyte.String
	if !input.ReadASN1(&bags, casn1.SEQUENCE) {
		return nil, errMalformedPFX
	}

	var names []string
	for !bags.Empty() {
		var bag cryptobyte.String
		var bagID asn1.ObjectIdentifier
		if !bags.ReadASN1(&bag, casn1.SEQUENCE) ||
			!bag.ReadASN1ObjectIdentifier(&bagID) ||
			!bag.SkipASN1(tagExplicit0) {
			return nil, errMalformedPFX
		}
		if !bagID.Equal(oidKeyBag) && !bagID.Equal(oidPKCS8ShroudedKeyBag) {
			continue
		}

		var attrs cryptobyte.String
		var hasAttrs bool
		if !bag.ReadOptionalASN1(&attrs, &hasAttrs, casn1.SET) {
			return nil, errMalformedPFX
		}
		for hasAttrs && !attrs.Empty() {
			var attr, values cryptobyte.String
			var attrID asn1.ObjectIdentifier
			if !attrs.ReadASN1(&attr, casn1.SEQUENCE) ||
				!attr.ReadASN1ObjectIdentifier(&attrID) ||
				!attr.ReadASN1(&values, casn1.SET) {
				return nil, errMalformedPFX
			}
			if !attrID.Equal(oidFriendlyName) {
				continue
			}
			name, err := readFriendlyName(values)
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		}
	}
	return names, nil
}

// readFriendlyName decodes a BMPString value; some producers use UTF8String.
func readFriendlyName(values cryptobyte.String) (string, error) {
	var raw cryptobyte.String
	switch {
	case values.PeekASN1Tag(tagBMPString):
		if !values.ReadASN1(&raw, tagBMPString) || len(raw)%2 != 0 {
			return "", errMalformedPFX
		}
		units := make([]uint16, 0, len(raw)/2)
		for i := 0; i < len(raw); i += 2 {
			units = append(units, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return strings.TrimRight(string(utf16.Decode(units)), "\x00"), nil
	case values.PeekASN1Tag(casn1.UTF8String):
		if !values.ReadASN1(&raw, casn1.UTF8String) {
			return "", errMalformedPFX
		}
		return string(raw), nil
	default:
		return "", errMalformedPFX
	}
}

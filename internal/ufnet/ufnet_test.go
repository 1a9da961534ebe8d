package ufnet_test

import (
	"testing"

	"github.com/AdguardTeam/contentfilter/internal/ufnet"
	"github.com/stretchr/testify/assert"
)

func TestExtractHostname(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		url  string
		want string
	}{{
		name: "simple",
		url:  "http://example.org/path",
		want: "example.org",
	}, {
		name: "port",
		url:  "https://example.org:8443/",
		want: "example.org",
	}, {
		name: "query",
		url:  "https://example.org?a=b",
		want: "example.org",
	}, {
		name: "userinfo",
		url:  "ftp://user@files.example.org/",
		want: "files.example.org",
	}, {
		name: "userinfo_password",
		url:  "http://user:pw@ads.example.com/x.js",
		want: "ads.example.com",
	}, {
		name: "userinfo_port",
		url:  "http://user:pw@ads.example.com:8080?a=b",
		want: "ads.example.com",
	}, {
		name: "no_scheme",
		url:  "example.org/path",
		want: "",
	}, {
		name: "no_path",
		url:  "http://example.org",
		want: "example.org",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, ufnet.ExtractHostname(tc.url))
		})
	}
}

func TestSchemeSpecificPart(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "//example.org/a", ufnet.SchemeSpecificPart("https://example.org/a"))
	assert.Equal(t, "text/plain,x", ufnet.SchemeSpecificPart("data:text/plain,x"))
	assert.Equal(t, "example.org/a:b", ufnet.SchemeSpecificPart("example.org/a:b"))
	assert.Equal(t, ":x", ufnet.SchemeSpecificPart(":x"))

	assert.Equal(t, "wss", ufnet.Scheme("WSS://example.org/"))
	assert.Equal(t, "", ufnet.Scheme("example.org/a:b"))
}

func TestIsSeparator(t *testing.T) {
	t.Parallel()

	for _, c := range []byte("/:?&=^!$,;[]{}|~ \t\x00\x7f") {
		assert.Truef(t, ufnet.IsSeparator(c), "%q", c)
	}

	for _, c := range []byte("azAZ09_-.%\x80\xff") {
		assert.Falsef(t, ufnet.IsSeparator(c), "%q", c)
	}
}

func TestEffectiveTLDPlusOne(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.org", ufnet.EffectiveTLDPlusOne("www.example.org"))
	assert.Equal(t, "example.co.uk", ufnet.EffectiveTLDPlusOne("a.b.example.co.uk"))
	assert.Equal(t, "", ufnet.EffectiveTLDPlusOne("co.uk"))
	assert.Equal(t, "", ufnet.EffectiveTLDPlusOne(""))
	assert.Equal(t, "", ufnet.EffectiveTLDPlusOne(".example.org"))

	assert.Equal(t, "www.example", ufnet.RemoveEffectiveTLD("www.example.co.uk"))
	assert.Equal(t, "example", ufnet.RemoveEffectiveTLD("example.com"))
	assert.Equal(t, "", ufnet.RemoveEffectiveTLD("com"))
}

func TestIsSubdomainOrSelf(t *testing.T) {
	t.Parallel()

	assert.True(t, ufnet.IsSubdomainOrSelf("example.org", "example.org"))
	assert.True(t, ufnet.IsSubdomainOrSelf("a.example.org", "example.org"))
	assert.False(t, ufnet.IsSubdomainOrSelf("badexample.org", "example.org"))
	assert.False(t, ufnet.IsSubdomainOrSelf("org", "example.org"))
}

func TestIsDomainName(t *testing.T) {
	t.Parallel()

	assert.True(t, ufnet.IsDomainName("example.org"))
	assert.True(t, ufnet.IsDomainName("my_host.example"))
	assert.True(t, ufnet.IsDomainName("localhost"))
	assert.False(t, ufnet.IsDomainName(""))
	assert.False(t, ufnet.IsDomainName("-bad.example"))
	assert.False(t, ufnet.IsDomainName("a..b"))
	assert.False(t, ufnet.IsDomainName("||example.org^"))
	assert.False(t, ufnet.IsDomainName("example.org."))
}

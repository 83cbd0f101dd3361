package proxy

import (
	"net/http"
	"testing"
	"time"
)

func TestOptions_PrependPathEnabled(t *testing.T) {
	o := &Options{}
	if !o.PrependPathEnabled() {
		t.Error("nil PrependPath should default to enabled")
	}
	f := false
	o.PrependPath = &f
	if o.PrependPathEnabled() {
		t.Error("explicit false should disable PrependPath")
	}
}

func TestOptions_SecureEnabled(t *testing.T) {
	o := &Options{}
	if !o.SecureEnabled() {
		t.Error("nil Secure should default to enabled")
	}
	f := false
	o.Secure = &f
	if o.SecureEnabled() {
		t.Error("explicit false should disable Secure")
	}
}

func TestOptions_Clone_DeepCopiesHeaders(t *testing.T) {
	o := &Options{Headers: http.Header{"X-A": []string{"1"}}}
	c := o.Clone()
	c.Headers.Set("X-A", "2")
	if o.Headers.Get("X-A") != "1" {
		t.Errorf("Clone() mutated the original Headers map: got %q", o.Headers.Get("X-A"))
	}
}

func TestOptions_Clone_Nil(t *testing.T) {
	var o *Options
	c := o.Clone()
	if c == nil {
		t.Fatal("Clone() of nil should return an empty Options, not nil")
	}
}

func TestMerge(t *testing.T) {
	base := &Options{
		XFwd:         true,
		ChangeOrigin: false,
		ProxyTimeout: 5 * time.Second,
		Method:       "GET",
	}
	override := &Options{
		ChangeOrigin: true,
		Method:       "POST",
		Timeout:      10 * time.Second,
	}

	out := Merge(base, override)
	if !out.XFwd {
		t.Error("expected base.XFwd to survive the merge")
	}
	if !out.ChangeOrigin {
		t.Error("expected override.ChangeOrigin to win")
	}
	if out.Method != "POST" {
		t.Errorf("Method = %q, want POST", out.Method)
	}
	if out.ProxyTimeout != 5*time.Second {
		t.Errorf("ProxyTimeout = %v, want 5s (base should survive when override is zero)", out.ProxyTimeout)
	}
	if out.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", out.Timeout)
	}

	// base must not be mutated by the merge.
	if base.ChangeOrigin {
		t.Error("Merge must not mutate base")
	}
}

func TestMerge_NilOverride(t *testing.T) {
	base := &Options{Method: "GET"}
	out := Merge(base, nil)
	if out.Method != "GET" {
		t.Errorf("Method = %q, want GET", out.Method)
	}
	if out == base {
		t.Error("Merge should return a clone, not the same pointer")
	}
}

func TestMerge_CookieRewritePrefersEnabledOverride(t *testing.T) {
	base := &Options{CookieDomainRewrite: NewCookieRewriteString("base.com")}
	override := &Options{}
	out := Merge(base, override)
	if out.CookieDomainRewrite.Mapping["*"] != "base.com" {
		t.Errorf("expected base cookie rewrite to survive when override leaves it disabled, got %+v", out.CookieDomainRewrite)
	}

	override2 := &Options{CookieDomainRewrite: NewCookieRewriteString("override.com")}
	out2 := Merge(base, override2)
	if out2.CookieDomainRewrite.Mapping["*"] != "override.com" {
		t.Errorf("expected override cookie rewrite to win, got %+v", out2.CookieDomainRewrite)
	}
}

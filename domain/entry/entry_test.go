package entry

import (
	"errors"
	"testing"
)

func TestParseDescriptor(t *testing.T) {
	data := []byte(`{
		"name": "shop",
		"exposes": {
			"./ProductList": "./modules/product-list.json",
			"./Checkout": "./modules/checkout.json"
		},
		"shared": [
			{"package": "utils", "version": "1.2.3", "requiredVersion": "^1.0.0", "singleton": true},
			{"package": "theme", "version": "2.0.0", "strictVersion": true, "eager": true}
		]
	}`)

	d, err := ParseDescriptor("shop", data)
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.Name != "shop" {
		t.Errorf("name = %q", d.Name)
	}
	if len(d.Exposes) != 2 {
		t.Errorf("exposes = %d, want 2", len(d.Exposes))
	}
	if len(d.Shared) != 2 {
		t.Fatalf("shared = %d, want 2", len(d.Shared))
	}

	req := d.Shared[0].Requirement()
	if req.Package != "utils" || req.RequiredVersion != "^1.0.0" || !req.Singleton {
		t.Errorf("requirement = %+v", req)
	}
	if !d.Shared[1].StrictVersion || !d.Shared[1].Eager {
		t.Errorf("flags = %+v", d.Shared[1])
	}

	aliases := d.Aliases()
	if len(aliases) != 2 || aliases[0] != "./Checkout" || aliases[1] != "./ProductList" {
		t.Errorf("aliases = %v", aliases)
	}
}

func TestParseDescriptorNameDefaultsToRemote(t *testing.T) {
	d, err := ParseDescriptor("cart", []byte(`{"exposes": {"./Cart": "./cart.json"}}`))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.Name != "cart" {
		t.Errorf("name = %q, want %q", d.Name, "cart")
	}
}

func TestParseDescriptorRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"invalid json", `{not json`},
		{"no exposes", `{"name": "x"}`},
		{"empty exposes", `{"name": "x", "exposes": {}}`},
		{"empty alias", `{"exposes": {"": "./m.json"}}`},
		{"empty path", `{"exposes": {"./M": "  "}}`},
		{"empty shared package", `{"exposes": {"./M": "./m.json"}, "shared": [{"version": "1.0.0"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDescriptor("shop", []byte(tc.data))
			if err == nil {
				t.Fatal("expected error")
			}
			var malformed *MalformedError
			if !errors.As(err, &malformed) {
				t.Fatalf("error type = %T, want *MalformedError", err)
			}
			if malformed.Remote != "shop" {
				t.Errorf("remote = %q, want %q", malformed.Remote, "shop")
			}
		})
	}
}

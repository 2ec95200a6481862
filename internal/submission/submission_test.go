package submission

import "testing"

func TestInspectorURLFixture(t *testing.T) {
	downloadURL := "https://files.pythonhosted.org/packages/cb/63/f897bdaa98710f9cb96ca1391742192975a776dc70a5a7b0acfbab50b20b/letsbuilda_pypi-4.0.0-py3-none-any.whl"
	want := "https://inspector.pypi.io/project/letsbuilda_pypi/4.0.0/packages/cb/63/f897bdaa98710f9cb96ca1391742192975a776dc70a5a7b0acfbab50b20b/letsbuilda_pypi-4.0.0-py3-none-any.whl/"

	got, err := InspectorURL("letsbuilda_pypi", "4.0.0", downloadURL)
	if err != nil {
		t.Fatalf("InspectorURL: %v", err)
	}
	if got != want {
		t.Fatalf("InspectorURL = %q, want %q", got, want)
	}
}

func TestInspectorURLAppendsFilePathCleanly(t *testing.T) {
	base, err := InspectorURL("pkg", "1.0.0", "https://files.pythonhosted.org/packages/aa/pkg-1.0.0.tar.gz")
	if err != nil {
		t.Fatalf("InspectorURL: %v", err)
	}
	full := base + "setup.py"
	want := "https://inspector.pypi.io/project/pkg/1.0.0/packages/aa/pkg-1.0.0.tar.gz/setup.py"
	if full != want {
		t.Fatalf("full url = %q, want %q", full, want)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

const fixture = `<vortrac>
  <vortex>
    <lat>25.0</lat>
    <lon>-75.0</lon>
    <speed>10</speed>
    <direction>270</direction>
    <obstime>2024-08-01T12:00:00Z</obstime>
  </vortex>
  <radar>
    <lat>25.5</lat>
    <lon>-75.5</lon>
    <alt>10</alt>
    <starttime>2024-08-01T11:00:00Z</starttime>
    <format>NEXRAD</format>
  </radar>
  <cappi>
    <zgridsp>0.5</zgridsp>
  </cappi>
  <center>
    <innerradius>5</innerradius>
    <outerradius>50</outerradius>
    <bottomlevel>1</bottomlevel>
    <toplevel>10</toplevel>
    <maxiterations>125</maxiterations>
    <tolerance>1e-6</tolerance>
    <ringcount>10</ringcount>
  </center>
  <vtd>
    <bottomlevel>1</bottomlevel>
    <toplevel>10</toplevel>
    <innerradius>5</innerradius>
    <outerradius>50</outerradius>
    <ringwidth>1</ringwidth>
    <maxwavenumber>2</maxwavenumber>
  </vtd>
  <choosecenter>
    <volumespan>6</volumespan>
    <stddevmult>2.0</stddevmult>
  </choosecenter>
  <pressure>
    <rapidchangerate>2.5</rapidchangerate>
    <volumespan>3</volumespan>
  </pressure>
</vortrac>`

func TestXMLReaderRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := XMLReader{}.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.Vortex.LatDeg != 25.0 || cfg.Vortex.SpeedMS != 10 {
		t.Errorf("Vortex section = %+v", cfg.Vortex)
	}
	if cfg.Center.MaxIterations != 125 {
		t.Errorf("Center.MaxIterations = %v, want 125", cfg.Center.MaxIterations)
	}
	if cfg.VTD.MaxWavenumber != 2 {
		t.Errorf("VTD.MaxWavenumber = %v, want 2", cfg.VTD.MaxWavenumber)
	}
}

func TestXMLReaderMissingField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")
	if err := os.WriteFile(path, []byte(`<vortrac><vortex><lat>1</lat></vortex></vortrac>`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (XMLReader{}).Read(path); err == nil {
		t.Error("expected error for missing required fields")
	}
}

package fleet

import "testing"

func TestCreateToValuesMinimal(t *testing.T) {
	req := CreateRequest{Name: "acme", ClusterID: "c1", Network: NetworkTestnet, Replicas: 3}
	got := CreateToValues(req)

	if got["network"] != "testnet" {
		t.Errorf("network = %v, want testnet", got["network"])
	}
	if got["replicas"] != 3 {
		t.Errorf("replicas = %v, want 3", got["replicas"])
	}
	if got["logLevel"] != "info" {
		t.Errorf("logLevel = %v, want info (default)", got["logLevel"])
	}
	if got["dbType"] != "badgerdb" {
		t.Errorf("dbType = %v, want badgerdb (default)", got["dbType"])
	}
	if _, ok := got["image.repository"]; ok {
		t.Error("image.* keys present despite nil Image")
	}
}

func TestCreateToValuesWithImage(t *testing.T) {
	req := CreateRequest{
		Name: "acme", ClusterID: "c1", Network: NetworkMainnet, Replicas: 5,
		Image: &Image{Repository: "custom/repo", Tag: "v2", PullPolicy: "Always"},
	}
	got := CreateToValues(req)
	if got["image.repository"] != "custom/repo" || got["image.tag"] != "v2" {
		t.Errorf("image values not translated: %+v", got)
	}
}

func TestCreateToValuesRLPImportDefaults(t *testing.T) {
	req := CreateRequest{
		Name: "acme", ClusterID: "c1", Network: NetworkMainnet, Replicas: 1,
		Bootstrap: &Bootstrap{RLPImport: RLPImport{Enabled: true, BaseURL: "https://snap.example.com"}},
	}
	got := CreateToValues(req)
	if got["bootstrap.rlpImport.minHeight"] != 1 {
		t.Errorf("minHeight default = %v, want 1", got["bootstrap.rlpImport.minHeight"])
	}
	if got["bootstrap.rlpImport.timeout"] != 7200 {
		t.Errorf("timeout default = %v, want 7200", got["bootstrap.rlpImport.timeout"])
	}
}

func TestUpdateToValuesReplicasOnly(t *testing.T) {
	replicas := 7
	req := UpdateRequest{Replicas: &replicas}
	got := UpdateToValues(req)
	if len(got) != 1 {
		t.Fatalf("expected exactly one key, got %+v", got)
	}
	if got["replicas"] != 7 {
		t.Errorf("replicas = %v, want 7", got["replicas"])
	}
}

func TestUpdateToValuesEmpty(t *testing.T) {
	got := UpdateToValues(UpdateRequest{})
	if len(got) != 0 {
		t.Errorf("expected no keys for empty update, got %+v", got)
	}
}

func TestValuesFilesFor(t *testing.T) {
	if got := valuesFilesFor("/nonexistent/chart/path", NetworkMainnet); got != nil {
		t.Errorf("expected nil for missing values file, got %v", got)
	}
	if got := valuesFilesFor("/nonexistent/chart/path", NetworkDevnet); got != nil {
		t.Errorf("devnet has no values file, got %v", got)
	}
}

package fleet

import "os"

// CreateToValues is the single allowed path from a CreateRequest to the flat
// dot-path Helm values map; every field maps deterministically.
func CreateToValues(req CreateRequest) map[string]any {
	vals := map[string]any{
		"network":  string(req.Network),
		"replicas": req.Replicas,
		"logLevel": orDefault(req.LogLevel, "info"),
		"dbType":   orDefault(req.DBType, "badgerdb"),
	}

	if req.Image != nil {
		vals["image.repository"] = req.Image.Repository
		vals["image.tag"] = req.Image.Tag
		vals["image.pullPolicy"] = req.Image.PullPolicy
	}

	if b := req.Bootstrap; b != nil {
		vals["bootstrap.useHostnames"] = b.UseHostnames
		if len(b.NodeIDs) > 0 {
			vals["bootstrap.nodeIDs"] = b.NodeIDs
		}
		if len(b.ExternalIPs) > 0 {
			vals["bootstrap.externalIPs"] = b.ExternalIPs
		}
		r := b.RLPImport
		vals["bootstrap.rlpImport.enabled"] = r.Enabled
		vals["bootstrap.rlpImport.baseUrl"] = r.BaseURL
		vals["bootstrap.rlpImport.rlpFilename"] = r.RLPFilename
		vals["bootstrap.rlpImport.multiPart"] = r.MultiPart
		if len(r.Parts) > 0 {
			vals["bootstrap.rlpImport.parts"] = r.Parts
		}
		vals["bootstrap.rlpImport.minHeight"] = orDefaultInt(r.MinHeight, 1)
		vals["bootstrap.rlpImport.timeout"] = orDefaultInt(r.Timeout, 7200)
	}

	if c := req.Consensus; c != nil {
		vals["consensus.sampleSize"] = c.SampleSize
		vals["consensus.quorumSize"] = c.QuorumSize
		vals["consensus.sybilProtectionEnabled"] = c.SybilProtectionEnabled
		vals["consensus.requireValidatorToConnect"] = c.RequireValidatorToConnect
		vals["consensus.allowPrivateIPs"] = c.AllowPrivateIPs
	}

	if ct := req.ChainTracking; ct != nil {
		vals["chainTracking.trackAllChains"] = ct.TrackAllChains
		if len(ct.TrackedChains) > 0 {
			vals["chainTracking.trackedChains"] = ct.TrackedChains
		}
		if len(ct.Aliases) > 0 {
			vals["chainTracking.aliases"] = ct.Aliases
		}
	}

	if r := req.Resources; r != nil {
		vals["resources.requests.memory"] = r.Requests.Memory
		vals["resources.requests.cpu"] = r.Requests.CPU
		vals["resources.limits.memory"] = r.Limits.Memory
		vals["resources.limits.cpu"] = r.Limits.CPU
	}

	if s := req.Storage; s != nil {
		vals["storage.size"] = s.Size
		vals["storage.storageClass"] = s.StorageClass
	}

	if ns := req.NodeServices; ns != nil {
		vals["nodeServices.enabled"] = ns.Enabled
		vals["nodeServices.type"] = ns.Type
	}

	if a := req.API; a != nil {
		vals["api.adminEnabled"] = a.AdminEnabled
		vals["api.metricsEnabled"] = a.MetricsEnabled
		vals["api.indexEnabled"] = a.IndexEnabled
		vals["api.httpAllowedHosts"] = a.HTTPAllowedHosts
	}

	return vals
}

// UpdateToValues translates an UpdateRequest into a partial Helm values map;
// only provided fields appear, so reuse-values fills in everything else.
func UpdateToValues(req UpdateRequest) map[string]any {
	vals := map[string]any{}

	if req.Replicas != nil {
		vals["replicas"] = *req.Replicas
	}
	if req.LogLevel != nil {
		vals["logLevel"] = *req.LogLevel
	}
	if req.Image != nil {
		vals["image.repository"] = req.Image.Repository
		vals["image.tag"] = req.Image.Tag
		vals["image.pullPolicy"] = req.Image.PullPolicy
	}
	if c := req.Consensus; c != nil {
		vals["consensus.sampleSize"] = c.SampleSize
		vals["consensus.quorumSize"] = c.QuorumSize
		vals["consensus.sybilProtectionEnabled"] = c.SybilProtectionEnabled
	}
	if ct := req.ChainTracking; ct != nil {
		vals["chainTracking.trackAllChains"] = ct.TrackAllChains
		if len(ct.TrackedChains) > 0 {
			vals["chainTracking.trackedChains"] = ct.TrackedChains
		}
	}
	if r := req.Resources; r != nil {
		vals["resources.requests.memory"] = r.Requests.Memory
		vals["resources.requests.cpu"] = r.Requests.CPU
		vals["resources.limits.memory"] = r.Limits.Memory
		vals["resources.limits.cpu"] = r.Limits.CPU
	}

	return vals
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// valuesFilesFor returns the network-specific values file path if one is
// configured and present on disk for this network (mainnet and testnet
// only; devnet has none).
func valuesFilesFor(chartPath string, network Network) []string {
	name, ok := networkValuesFiles[network]
	if !ok {
		return nil
	}
	path := chartPath + "/" + name
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return []string{path}
}

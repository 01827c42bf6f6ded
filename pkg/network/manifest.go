package network

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/hanzoai/bootnode/pkg/deploy"
)

// RenderParams holds everything the manifest templates need to produce one
// tenant's Deployment + Service + two Ingresses.
type RenderParams struct {
	Slug   string
	Domain string
	Brand  string

	// WebImage is the container image for the web Deployment.
	WebImage string
	// WebReplicas is the Deployment's replica count.
	WebReplicas int

	// APIServiceName is the shared API service the API ingress routes to;
	// it is not rendered here, it is expected to already exist in the
	// cluster.
	APIServiceName string
	APIServicePort int

	// IAMClientID is injected into the web Deployment as an env var.
	IAMClientID string
	APIURL      string
	WSURL       string

	// ClusterIssuer names the cert-manager ClusterIssuer used for TLS.
	ClusterIssuer string

	// CloudDomains is the full sibling domain set (fixed list + this
	// tenant's own), comma-joined into the CORS allow-origin annotation
	// because users may arrive from any sibling frontend.
	CloudDomains []string
}

const manifestTemplate = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: {{.WebDeploymentName}}
  labels:
    app.kubernetes.io/name: {{.Slug}}-cloud-web
    app.kubernetes.io/part-of: bootnode
spec:
  replicas: {{.WebReplicas}}
  selector:
    matchLabels:
      app: {{.WebDeploymentName}}
  template:
    metadata:
      labels:
        app: {{.WebDeploymentName}}
    spec:
      containers:
        - name: web
          image: {{.WebImage}}
          ports:
            - containerPort: 3001
          env:
            - name: BOOTNODE_BRAND
              value: "{{.Brand}}"
            - name: BOOTNODE_IAM_CLIENT_ID
              value: "{{.IAMClientID}}"
            - name: BOOTNODE_API_URL
              value: "{{.APIURL}}"
            - name: BOOTNODE_WS_URL
              value: "{{.WSURL}}"
---
apiVersion: v1
kind: Service
metadata:
  name: {{.WebServiceName}}
  labels:
    app.kubernetes.io/name: {{.Slug}}-cloud-web
    app.kubernetes.io/part-of: bootnode
spec:
  selector:
    app: {{.WebDeploymentName}}
  ports:
    - port: 3001
      targetPort: 3001
---
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: {{.WebIngressName}}
  annotations:
    cert-manager.io/cluster-issuer: {{.ClusterIssuer}}
spec:
  tls:
    - hosts:
        - cloud.{{.Domain}}
      secretName: {{.Slug}}-cloud-tls
  rules:
    - host: cloud.{{.Domain}}
      http:
        paths:
          - path: /
            pathType: Prefix
            backend:
              service:
                name: {{.WebServiceName}}
                port:
                  number: 3001
---
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: {{.APIIngressName}}
  annotations:
    cert-manager.io/cluster-issuer: {{.ClusterIssuer}}
    nginx.ingress.kubernetes.io/cors-allow-origin: "{{.CORSOrigins}}"
    nginx.ingress.kubernetes.io/enable-cors: "true"
spec:
  tls:
    - hosts:
        - api.{{.Domain}}
      secretName: {{.Slug}}-cloud-api-tls
  rules:
    - host: api.{{.Domain}}
      http:
        paths:
          - path: /
            pathType: Prefix
            backend:
              service:
                name: {{.APIServiceName}}
                port:
                  number: {{.APIServicePort}}
`

type templateData struct {
	RenderParams
	WebDeploymentName string
	WebServiceName    string
	WebIngressName    string
	APIIngressName    string
	CORSOrigins       string
}

var tmpl = template.Must(template.New("network-manifest").Parse(manifestTemplate))

// Render renders the Deployment, Service, and two Ingress resources for a
// tenant as a single multi-document YAML string suitable for
// `kubectl apply -f -`.
func Render(p RenderParams) (string, error) {
	if p.ClusterIssuer == "" {
		p.ClusterIssuer = "letsencrypt-prod"
	}
	origins := make([]string, 0, len(p.CloudDomains))
	for _, d := range p.CloudDomains {
		if d == "" {
			continue
		}
		origins = append(origins, fmt.Sprintf("https://cloud.%s", d))
	}

	data := templateData{
		RenderParams:      p,
		WebDeploymentName: resourceName(p.Slug, "web"),
		WebServiceName:    resourceName(p.Slug, "web"),
		WebIngressName:    resourceName(p.Slug, "ingress"),
		APIIngressName:    resourceName(p.Slug, "api-ingress"),
		CORSOrigins:       strings.Join(origins, ", "),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering network manifest: %w", err)
	}
	return buf.String(), nil
}

// ResourcesFor returns the four named resources a Delete sweeps, matching
// exactly what Render produces.
func ResourcesFor(slug string) []deploy.Resource {
	return []deploy.Resource{
		{Kind: "deployment", Name: resourceName(slug, "web")},
		{Kind: "service", Name: resourceName(slug, "web")},
		{Kind: "ingress", Name: resourceName(slug, "ingress")},
		{Kind: "ingress", Name: resourceName(slug, "api-ingress")},
	}
}

package api

// docsHTML renders /openapi.json with Stoplight Elements.
const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>MFA Relay Status API</title>
<link rel="stylesheet" href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css">
<script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
<style>
  body { height: 100vh; margin: 0; }
  #events-link { position: fixed; top: 12px; right: 16px; z-index: 9999;
    padding: 5px 12px; border: 1px solid #30363d; border-radius: 6px;
    background: #161b22; color: #58a6ff; font: 500 12px system-ui, sans-serif;
    text-decoration: none; }
</style>
</head>
<body>
<a id="events-link" href="/docs/events">Event Feed Docs</a>
<elements-api apiDescriptionUrl="/openapi.json" router="hash" layout="sidebar" tryItCredentialsPolicy="same-origin" darkMode />
</body>
</html>`

package api

const eventsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Event Feed - MFA Relay</title>
  <style>
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      font-size: 14px;
      line-height: 1.6;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    nav {
      background: #161b22;
      border-bottom: 1px solid #30363d;
      padding: 12px 24px;
      display: flex;
      gap: 16px;
    }
    nav .brand { font-weight: 600; color: #e6edf3; }
    main { max-width: 900px; margin: 0 auto; padding: 24px 16px 64px; }
    h1, h2 { color: #e6edf3; }
    h2 { border-bottom: 1px solid #21262d; padding-bottom: 6px; margin-top: 36px; }
    table { width: 100%; border-collapse: collapse; font-size: 13px; }
    th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #21262d; vertical-align: top; }
    th { background: #161b22; color: #8b949e; }
    code, pre {
      font-family: "SFMono-Regular", Consolas, Menlo, monospace;
      background: #161b22;
      border: 1px solid #30363d;
      border-radius: 4px;
    }
    code { padding: 1px 5px; font-size: 12px; }
    pre { padding: 14px; overflow-x: auto; }
    pre code { border: none; padding: 0; }
  </style>
</head>
<body>

<nav>
  <span class="brand">MFA Relay</span>
  <span>Event Feed</span>
  <a href="/docs">REST API Docs</a>
</nav>

<main>
  <h1>Event Feed</h1>
  <p>
    <code>GET /api/v1/events</code> streams what the relay does with every frame it
    receives from the code source, as Server-Sent Events. Payloads are JSON and never
    contain the code itself.
  </p>

  <h2 id="kinds">Event Kinds</h2>
  <table>
    <tr><th>Kind</th><th>Payload</th><th>When</th></tr>
    <tr><td><code>connected</code></td><td><code>{"source_url"}</code></td><td>The source socket opened.</td></tr>
    <tr><td><code>disconnected</code></td><td><code>{"source_url"}</code></td><td>The socket closed or failed. A retry follows after the fixed delay.</td></tr>
    <tr><td><code>code_received</code></td><td><code>{"code_length"}</code></td><td>An <code>mfa_code</code> envelope arrived.</td></tr>
    <tr><td><code>delivered</code></td><td><code>{"outcome","tab_id","tab_url","candidate"}</code></td><td>Delivery finished with <code>injected</code>, <code>no_field</code> or <code>no_active_tab</code>.</td></tr>
    <tr><td><code>delivery_failed</code></td><td><code>{"tab_id","error"}</code></td><td>The browser rejected the delivery.</td></tr>
    <tr><td><code>unknown_code</code></td><td><code>{"tag"}</code></td><td>A well-formed envelope carried a tag other than <code>mfa_code</code>.</td></tr>
    <tr><td><code>malformed</code></td><td><code>{"bytes"}</code></td><td>A frame did not decode as an envelope.</td></tr>
  </table>

  <h2 id="filter">Filtering</h2>
  <p>Pass <code>?kinds=</code> with a comma-separated list to receive only those kinds.</p>
  <pre><code>curl -N 'http://127.0.0.1:3501/api/v1/events?kinds=delivered,delivery_failed'</code></pre>

  <h2 id="format">Wire Format</h2>
  <pre><code>event: delivered
data: {"outcome":"injected","tab_id":"8F1C...","tab_url":"https://example.com/login","candidate":"numeric"}</code></pre>

  <h2 id="envelope">Source Envelope</h2>
  <p>The code source sends text frames shaped like this. Any other <code>code</code> is logged and dropped.</p>
  <pre><code>{"code":"mfa_code","payload":{"mfa_code":{"code":"482193"}}}</code></pre>

  <h2 id="notes">Notes</h2>
  <ul>
    <li>Each subscriber has a 256-event buffer. Events for a slow reader are dropped.</li>
    <li>The endpoint has no authentication. Keep <code>RELAY_STATUS_ADDR</code> on loopback.</li>
  </ul>
</main>

</body>
</html>`

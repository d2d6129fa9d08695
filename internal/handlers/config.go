package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleConfig serves the configuration HTML page
func (h *Handler) handleConfig(c *gin.Context) {
	html := `<!DOCTYPE html>
<html lang="fr">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Configuration Miaou</title>
  <link href="https://fonts.googleapis.com/css2?family=Roboto:wght@400;500;700&display=swap" rel="stylesheet">
  <style>
    :root {
      --primary-color: #4a90e2;
      --secondary-color: #50e3c2;
      --background-color: #f7f9fc;
      --text-color: #333;
      --input-border: #ccc;
      --input-focus: var(--primary-color);
    }
    * { box-sizing: border-box; }
    body {
      font-family: 'Roboto', sans-serif;
      background-color: var(--background-color);
      color: var(--text-color);
      margin: 0;
      padding: 20px;
      display: flex;
      align-items: center;
      justify-content: center;
      min-height: 100vh;
    }
    .container {
      background-color: #fff;
      border-radius: 8px;
      padding: 30px;
      max-width: 500px;
      width: 100%;
      box-shadow: 0 4px 12px rgba(0, 0, 0, 0.1);
    }
    h1 {
      text-align: center;
      margin-bottom: 20px;
      color: var(--primary-color);
    }
    label { font-weight: 500; margin-top: 15px; display: block; }
    input, select {
      width: 100%;
      padding: 10px;
      border: 1px solid var(--input-border);
      border-radius: 4px;
      margin-top: 5px;
      font-size: 1rem;
    }
    input:focus, select:focus {
      outline: none;
      border-color: var(--input-focus);
      box-shadow: 0 0 5px rgba(74, 144, 226, 0.5);
    }
    button {
      background-color: var(--primary-color);
      color: #fff;
      border: none;
      padding: 12px 20px;
      border-radius: 4px;
      font-size: 1rem;
      cursor: pointer;
      margin-top: 25px;
      width: 100%;
      transition: background-color 0.3s ease;
    }
    button:hover { background-color: var(--secondary-color); }
    .result {
      margin-top: 25px;
      background-color: #f1f3f5;
      border: 1px solid #e0e6ed;
      border-radius: 4px;
      padding: 15px;
      word-break: break-all;
    }
    .result a {
      color: var(--primary-color);
      text-decoration: none;
      font-weight: 500;
    }
    .result a:hover { text-decoration: underline; }
  </style>
  <script>
    function toBase64URL(str) {
      const bytes = new TextEncoder().encode(str);
      let bin = "";
      bytes.forEach(b => bin += String.fromCharCode(b));
      return btoa(bin).replace(/\+/g, '-').replace(/\//g, '_').replace(/=+$/, '');
    }

    function fromBase64URL(str) {
      const b64 = str.replace(/-/g, '+').replace(/_/g, '/');
      const bin = atob(b64 + '==='.slice((b64.length + 3) % 4));
      return new TextDecoder().decode(Uint8Array.from(bin, c => c.charCodeAt(0)));
    }

    function list(id) {
      return document.getElementById(id).value.split(',').map(s => s.trim()).filter(s => s);
    }

    function getConfigFromURL() {
      const pathParts = window.location.pathname.split('/').filter(p => p);
      if (pathParts.length >= 2 && pathParts[pathParts.length - 1] === "configure") {
        try {
          const decodedConfig = JSON.parse(fromBase64URL(pathParts[pathParts.length - 2]));

          document.getElementById('tmdb').value = decodedConfig.TMDB_API_KEY || "";
          document.getElementById('alldebrid').value = decodedConfig.API_KEY_ALLDEBRID || "";
          document.getElementById('sharewood').value = decodedConfig.SHAREWOOD_PASSKEY || "";
          document.getElementById('access').value = decodedConfig.ACCESS_KEY || "";
          document.getElementById('res').value = (decodedConfig.RES_TO_SHOW || []).join(",");
          document.getElementById('lang').value = (decodedConfig.LANG_TO_SHOW || []).join(",");
          document.getElementById('codecs').value = (decodedConfig.CODECS_TO_SHOW || []).join(",");
          document.getElementById('files').value = decodedConfig.FILES_TO_SHOW || 2;
          document.getElementById('priority').value = decodedConfig.SERIES_PRIORITY || "broadest";
        } catch (error) {
          console.error("Error decoding configuration:", error);
        }
      }
    }

    function generateConfig() {
      const config = {
        TMDB_API_KEY: document.getElementById('tmdb').value,
        API_KEY_ALLDEBRID: document.getElementById('alldebrid').value,
        SHAREWOOD_PASSKEY: document.getElementById('sharewood').value,
        ACCESS_KEY: document.getElementById('access').value,
        RES_TO_SHOW: list('res'),
        LANG_TO_SHOW: list('lang'),
        CODECS_TO_SHOW: list('codecs'),
        FILES_TO_SHOW: parseInt(document.getElementById('files').value, 10) || 2,
        SERIES_PRIORITY: document.getElementById('priority').value
      };
      const encodedConfig = toBase64URL(JSON.stringify(config));

      const baseUrl = window.location.protocol + '//' + window.location.host;
      const manifest = baseUrl + '/' + encodedConfig + '/manifest.json';

      document.getElementById('result').innerHTML =
        '<p><strong>Lien de configuration:</strong></p>' +
        '<p><a href="' + baseUrl + '/' + encodedConfig + '/configure">' + baseUrl + '/' + encodedConfig + '/configure</a></p>' +
        '<p><strong>Lien du manifest:</strong></p>' +
        '<p><a href="' + manifest + '">' + manifest + '</a></p>' +
        '<p><a href="stremio://' + manifest.replace(/^https?:\/\//, '') + '">Installer dans Stremio</a></p>';
    }

    window.onload = getConfigFromURL;
  </script>
</head>
<body>
  <div class="container">
    <h1>Configuration Miaou</h1>
    <label for="tmdb">Clé API TMDB</label>
    <input type="text" id="tmdb" placeholder="Entrez votre clé API TMDB">

    <label for="alldebrid">Clé API AllDebrid</label>
    <input type="text" id="alldebrid" placeholder="Entrez votre clé API AllDebrid">

    <label for="sharewood">Passkey Sharewood (optionnel)</label>
    <input type="text" id="sharewood" placeholder="Entrez votre passkey Sharewood">

    <label for="access">Clé d'accès</label>
    <input type="password" id="access" placeholder="Clé d'accès du serveur">

    <label for="res">Résolutions (par ordre de préférence)</label>
    <input type="text" id="res" value="2160p,1080p,720p" placeholder="Ex: 2160p,1080p,720p">

    <label for="lang">Langues (par ordre de préférence)</label>
    <input type="text" id="lang" value="multi,vff,french" placeholder="Ex: multi,vff,french,vostfr">

    <label for="codecs">Codecs (par ordre de préférence)</label>
    <input type="text" id="codecs" value="h265,h264" placeholder="Ex: h265,h264">

    <label for="files">Nombre de liens</label>
    <input type="number" id="files" value="2" min="1" max="10">

    <label for="priority">Priorité des séries</label>
    <select id="priority">
      <option value="broadest">Intégrales d'abord</option>
      <option value="specific">Épisodes d'abord</option>
    </select>

    <button onclick="generateConfig()">Générer la configuration</button>
    <div id="result" class="result"></div>
  </div>
</body>
</html>`

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// handleConfigWithParams serves the config page with pre-filled values from URL
func (h *Handler) handleConfigWithParams(c *gin.Context) {
	// The JavaScript in the HTML will handle parsing the configuration from the URL
	h.handleConfig(c)
}

package webui

import (
	"fmt"
	"html/template"
	"io"
	"log"

	"general-display/pkg/catalog"
	"general-display/pkg/globals"
	"general-display/pkg/network"
	"general-display/pkg/storage"
)

type page struct {
	Title   string
	Message string
}

func newPage(suffix, message string) page {
	return page{Title: globals.ProjectTitle + suffix, Message: message}
}

type rootData struct {
	page
	Width, Height int
	Images        []catalog.Descriptor
	Slideshow     bool
	SlideshowRun  bool
}

type settingsData struct {
	page
	APMode          bool
	NetworkName     string
	Encrypted       bool
	CaptivePortal   bool
	Autorun         bool
	ShowIP          bool
	ShowSSID        bool
	ExhibitPassword bool
	Networks        []network.Network
	Address         string
}

type filesystemData struct {
	page
	Files []storage.File
	Usage storage.Usage
}

type notFoundData struct {
	page
	URI    string
	Method string
	Host   string
}

var funcs = template.FuncMap{
	"caption": caption,
	"bytes":   formatBytes,
}

// caption is the format line of an image in the picture list
func caption(d catalog.Descriptor) string {
	if d.Kind == catalog.Bitmap {
		return fmt.Sprintf("%d*%dpx*%dbit", d.Width, d.Height, d.Depth)
	}
	return fmt.Sprintf("%d*%dpx", d.Width, d.Height)
}

func formatBytes(n any) string {
	var v float64
	switch n := n.(type) {
	case int64:
		v = float64(n)
	case uint64:
		v = float64(n)
	case int:
		v = float64(n)
	}
	switch {
	case v < 1024:
		return fmt.Sprintf("%.0f B", v)
	case v < 1024*1024:
		return fmt.Sprintf("%.1f kB", v/1024)
	case v < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", v/1024/1024)
	}
	return fmt.Sprintf("%.1f GB", v/1024/1024/1024)
}

func render(w io.Writer, t *template.Template, data any) {
	if err := t.Execute(w, data); err != nil {
		log.Printf("HTTP: failed to render %s: %v", t.Name(), err)
	}
}

const layout = `{{define "head"}}<!DOCTYPE HTML><html><head><meta charset='UTF-8'>
<meta name=viewport content='width=device-width, initial-scale=1.0,'>
<style>
body{background-color:#d2f3eb;font-family:Arial,Helvetica,Sans-Serif;color:#000000;font-size:12pt}
th{background-color:#b6c0db;color:#050ed2;font-weight:lighter;font-size:10pt}
table,th,td{border:1px solid black}
.message{color:#b00020}
</style>
<title>{{.Title}}</title></head><body>
<p><a href='/'>Pictures</a> | <a href='/settings'>Settings</a> | <a href='/filesystem'>Files</a> | <a href='/showwifi'>Show WiFi</a></p>
{{with .Message}}<p class='message'>{{.}}</p>{{end}}{{end}}
{{define "foot"}}</body></html>{{end}}`

func mustPage(name, body string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(layout + body))
}

var rootPage = mustPage("root", `{{template "head" .}}
<h2>Pictures</h2>
<p>Display {{.Width}}*{{.Height}}px</p>
{{if .Slideshow}}<p>{{if .SlideshowRun}}<a href='/slideshow?off=1'>Stop slideshow</a>{{else}}<a href='/slideshow?on=1'>Start slideshow</a>{{end}}</p>{{end}}
<form action='/' method='get'>
<table>
<tr><th>Picture</th><th>Format</th><th>Size</th></tr>
{{range .Images}}<tr><td><input type='radio' name='PicSelect' value='{{.Path}}'> {{.Path}}</td><td>{{caption .}}</td><td>{{bytes .Size}}</td></tr>
{{else}}<tr><td colspan='3'>No pictures found.</td></tr>
{{end}}<tr><td colspan='3'><input type='radio' name='PicSelect' value='off'> clear display</td></tr>
</table>
<input type='submit' value='Show'>
</form>
{{template "foot" .}}`)

var settingsPage = mustPage("settings", `{{template "head" .}}
<h2>WiFi Settings</h2>
<table><tr><td>
<h4>Current WiFi Settings:</h4>
<p>Mode: {{if .APMode}}Access Point{{else}}Station{{end}}<br>
Network: {{.NetworkName}}<br>
{{with .Address}}Address: {{.}}<br>{{end}}</p>
</td></tr></table>
<form action='/settings' method='post'>
<h4>Display</h4>
<input type='hidden' name='save' value='1'>
<input type='checkbox' name='autorun_slideshow'{{if .Autorun}} checked{{end}}> Start slideshow on boot<br>
<input type='checkbox' name='show_ip'{{if .ShowIP}} checked{{end}}> Show IP address on boot<br>
<input type='checkbox' name='show_ssid'{{if .ShowSSID}} checked{{end}}> Show WiFi name on boot<br>
<input type='checkbox' name='exhibit_passwd'{{if .ExhibitPassword}} checked{{end}}> Show access point password on boot<br>
<input type='submit' value='Save'>
</form>
<form action='/settings' method='post'>
<h4><input type='radio' value='1' name='WiFiMode'{{if not .APMode}} checked{{end}}> WiFi Station Mode</h4>
<table>
<tr><th>Network</th><th>Signal</th><th>Encryption</th></tr>
{{range .Networks}}<tr><td><input type='radio' name='WiFi_Network' value='{{.SSID}}'> {{.SSID}}</td><td>{{.Signal}}%</td><td>{{.Encryption}}</td></tr>
{{else}}<tr><td colspan='3'>No networks found.</td></tr>
{{end}}</table>
Password: <input type='password' name='STAWLanPW' maxlength='24'><br>
<h4><input type='radio' value='2' name='WiFiMode'{{if .APMode}} checked{{end}}> WiFi Access Point Mode</h4>
Name: <input type='text' name='APPointName' maxlength='19' value='{{if .APMode}}{{.NetworkName}}{{end}}'><br>
Password: <input type='password' name='APPW' maxlength='24'><br>
Repeat: <input type='password' name='APPWRepeat' maxlength='24'><br>
<input type='checkbox' name='PasswordReq'{{if .Encrypted}} checked{{end}}> Password for Login required.<br>
<input type='checkbox' name='CaptivePortal'{{if .CaptivePortal}} checked{{end}}> Activate Captive Portal<br>
<input type='submit' value='Save WiFi Settings'>
</form>
<form action='/settings' method='post'>
<button type='submit' name='Reboot' value='1'>Reboot System</button>
</form>
{{template "foot" .}}`)

var filesystemPage = mustPage("filesystem", `{{template "head" .}}
<h2>File System Manager</h2>
<p>Used {{bytes .Usage.Used}} of {{bytes .Usage.Total}}, {{bytes .Usage.Free}} free</p>
<table>
<tr><th>File</th><th>Size</th><th></th></tr>
{{range .Files}}<tr><td><a href='/{{.Name}}'>{{.Name}}</a></td><td>{{bytes .Size}}</td><td><a href='/filesystem?delete={{.Name}}'>delete</a></td></tr>
{{else}}<tr><td colspan='3'>No files.</td></tr>
{{end}}</table>
<form action='/upload' method='post' enctype='multipart/form-data'>
<input type='file' name='upload'> <input type='submit' value='Upload'>
</form>
{{template "foot" .}}`)

var notFoundPage = mustPage("notfound", `{{template "head" .}}
<h2>File Not Found</h2>
<p>URI: {{.URI}}<br>Method: {{.Method}}<br>Host: {{.Host}}</p>
{{template "foot" .}}`)

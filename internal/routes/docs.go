package routes

import "github.com/gofiber/fiber/v2"

const docsIndexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>TutorAppBack API</title>
  <style>
    body { font-family: Georgia, serif; max-width: 860px; margin: 0 auto; padding: 32px 16px; color: #132019; }
    code { background: #0f172a; color: #e2e8f0; padding: 2px 6px; border-radius: 4px; }
    td { padding: 4px 12px 4px 0; vertical-align: top; }
  </style>
</head>
<body>
  <h1>TutorAppBack API</h1>
  <p>Lesson booking, credit ledger and trial conversion endpoints. All
  <code>/api/v1</code> routes require a bearer token from
  <code>/api/auth/login</code>.</p>
  <table>
    <tr><td><code>POST /api/auth/register</code></td><td>register (student or teacher)</td></tr>
    <tr><td><code>POST /api/auth/login</code></td><td>login, returns JWT</td></tr>
    <tr><td><code>POST /api/v1/sessions/book</code></td><td>book a lesson; deducts credits</td></tr>
    <tr><td><code>GET /api/v1/sessions</code></td><td>list own sessions (status, timeframe filters)</td></tr>
    <tr><td><code>POST /api/v1/sessions/:id/cancel</code></td><td>cancel; refund outside the penalty window</td></tr>
    <tr><td><code>POST /api/v1/sessions/:id/reschedule</code></td><td>move a lesson, net-zero credits</td></tr>
    <tr><td><code>POST /api/v1/sessions/:id/join</code></td><td>join-window gated meeting link</td></tr>
    <tr><td><code>GET /api/v1/credits/balance</code></td><td>current balance</td></tr>
    <tr><td><code>GET /api/v1/credits/history</code></td><td>ledger history (type, page, limit)</td></tr>
    <tr><td><code>GET /api/v1/trial/status</code></td><td>trial standing and redirect hint</td></tr>
    <tr><td><code>POST /api/v1/admin/credits/adjust</code></td><td>manual adjustment with mandatory reason</td></tr>
    <tr><td><code>POST /api/v1/admin/students/:id/convert</code></td><td>manual trial conversion</td></tr>
    <tr><td><code>POST /api/v1/admin/sweeps/class-statuses</code></td><td>run the status sweep</td></tr>
    <tr><td><code>POST /api/v1/admin/sweeps/trial-conversions</code></td><td>run the trial conversion sweep</td></tr>
    <tr><td><code>GET/PUT /api/v1/admin/settings</code></td><td>join window and policy settings</td></tr>
  </table>
</body>
</html>`

func registerDocs(app *fiber.App) {
	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(docsIndexHTML)
	})
}

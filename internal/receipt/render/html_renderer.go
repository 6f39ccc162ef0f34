package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

const receiptHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Receipt {{.Receipt.Number}}</title>
  <style>
    :root {
      --font: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      padding: 40px;
      font-family: var(--font);
      color: #1a1f36;
      background: #f7f9fc;
      -webkit-font-smoothing: antialiased;
    }
    .receipt-card {
      background: #ffffff;
      max-width: 760px;
      margin: 0 auto;
      padding: 60px;
      box-shadow: 0 2px 5px rgba(0,0,0,0.04);
      border-radius: 4px;
    }
    .header {
      display: flex;
      justify-content: space-between;
      margin-bottom: 40px;
    }
    .header-left h1 {
      margin: 0;
      font-size: 24px;
      font-weight: 700;
      color: #1a1f36;
    }
    .header-right {
      text-align: right;
      font-weight: 600;
      color: #8792a2;
      font-size: 16px;
    }

    .meta-grid {
      display: flex;
      justify-content: space-between;
      margin-bottom: 40px;
    }
    .col {
      flex: 1;
    }
    .label {
      font-size: 11px;
      text-transform: uppercase;
      color: #8792a2;
      margin-bottom: 6px;
      font-weight: 600;
      letter-spacing: 0.3px;
    }
    .value {
      font-size: 14px;
      line-height: 1.5;
      color: #1a1f36;
    }

    .amount-section {
      margin-bottom: 40px;
    }
    .amount-large {
      font-size: 32px;
      font-weight: 700;
      color: #1a1f36;
      margin-bottom: 4px;
    }

    table {
      width: 100%;
      border-collapse: collapse;
      margin-bottom: 30px;
    }
    th {
      text-align: left;
      text-transform: uppercase;
      font-size: 11px;
      color: #8792a2;
      border-bottom: 1px solid #e3e8ee;
      padding: 10px 0;
      font-weight: 600;
      letter-spacing: 0.3px;
    }
    td {
      padding: 16px 0;
      border-bottom: 1px solid #e3e8ee;
      font-size: 14px;
      color: #1a1f36;
      vertical-align: top;
    }
    .td-right { text-align: right; }

    .totals {
      width: 100%;
      display: flex;
      flex-direction: column;
      align-items: flex-end;
    }
    .total-row {
      display: flex;
      justify-content: space-between;
      width: 250px;
      padding: 6px 0;
      font-size: 14px;
    }
    .total-label { color: #697386; }
    .total-value { color: #1a1f36; text-align: right; font-weight: 500; }
    .total-final {
      border-top: 1px solid #e3e8ee;
      margin-top: 10px;
      padding-top: 10px;
      font-weight: 700;
      font-size: 16px;
      color: #1a1f36;
    }

    .footer {
      margin-top: 60px;
      font-size: 12px;
      color: #8792a2;
      border-top: 1px solid #e3e8ee;
      padding-top: 20px;
    }
  </style>
</head>
<body>
  <div class="receipt-card">
    <!-- Header -->
    <div class="header">
      <div class="header-left">
        <h1>Receipt</h1>
        <div class="label" style="margin-top: 12px;">Receipt number</div>
        <div class="value">{{.Receipt.Number}}</div>
      </div>
      <div class="header-right">{{.Org.Name}}</div>
    </div>

    <!-- Metadata Grid -->
    <div class="meta-grid">
      <div class="col">
        <div class="label">Issued to</div>
        <div class="value">
          <strong>{{.Receipt.AttendeeName}}</strong><br>
          {{.Receipt.AttendeeEmail}}
        </div>
      </div>
      <div class="col" style="flex: 0 0 200px;">
        <div class="label">Event</div>
        <div class="value">{{.Receipt.EventName}}</div>

        <div class="label" style="margin-top: 16px;">Date issued</div>
        <div class="value">{{formatDate .Receipt.IssuedAt}}</div>
      </div>
    </div>

    <!-- Amount Paid -->
    <div class="amount-section">
      <div class="amount-large">{{formatMoney .Receipt.Total .Receipt.Currency}}</div>
      <div class="value" style="color: #697386;">paid {{formatDate .Receipt.IssuedAt}}</div>
    </div>

    <!-- Line Items -->
    <table>
      <thead>
        <tr>
          <th style="width: 50%;">Description</th>
          <th class="td-right">Qty</th>
          <th class="td-right">Unit Price</th>
          <th class="td-right">Amount</th>
        </tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td>{{.Description}}</td>
          <td class="td-right">{{.Quantity}}</td>
          <td class="td-right">{{formatMoney .UnitPrice $.Receipt.Currency}}</td>
          <td class="td-right" style="font-weight: 500;">{{formatMoney .Amount $.Receipt.Currency}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <!-- Totals -->
    <div class="totals">
      <div class="total-row">
        <span class="total-label">Subtotal</span>
        <span class="total-value">{{formatMoney .Receipt.Subtotal .Receipt.Currency}}</span>
      </div>
      {{if gt .Receipt.SponsorshipTotal 0}}
      <div class="total-row">
        <span class="total-label">Sponsorship applied</span>
        <span class="total-value">-{{formatMoney .Receipt.SponsorshipTotal .Receipt.Currency}}</span>
      </div>
      {{end}}
      <div class="total-row total-final">
        <span class="total-label" style="color: #1a1f36;">Total paid</span>
        <span class="total-value">{{formatMoney .Receipt.Total .Receipt.Currency}}</span>
      </div>
    </div>

    <div class="footer">
      This receipt confirms your registration for {{.Receipt.EventName}}.
    </div>

  </div>
</body>
</html>
`

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatMoney": FormatMoney,
		"formatDate":  formatDate,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("receipt").Funcs(funcs).Parse(receiptHTMLTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	if input.Org.Name == "" {
		input.Org.Name = "Receipt"
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// FormatMoney renders minor units as "CUR 12.34". Shared with the PDF path
// so both documents show identical figures.
func FormatMoney(amount int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	value := float64(amount) / 100.0
	return fmt.Sprintf("%s %.2f", currency, value)
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02")
}

package render

const reportCSS = `
html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}
body{font-family:Georgia,'Times New Roman',serif;color:#1c1917;background:#fff;padding:0.6rem;line-height:1.55;}
.pdf-wrap{max-width:1000px;margin:0 auto;}
.report-viewer{padding:0 0.65rem;}
.report-header{border-bottom:2px solid #1c1917;padding-bottom:0.6rem;margin-bottom:1rem;}
.report-meta{color:#44403c;font-size:0.85rem;}
.report-meta strong{color:#1c1917;}
.report-badges{margin-top:0.4rem;}
.report-badge{display:inline-block;background:#ecfdf5;color:#065f46;border:1px solid #6ee7b7;border-radius:3px;padding:0.12rem 0.45rem;margin-right:0.35rem;font-size:0.75rem;font-family:Helvetica,Arial,sans-serif;}
.report-badge-warn{background:#fef3c7;color:#78350f;border-color:#fcd34d;}
.report-html h1{font-size:1.5rem;margin:0.4rem 0 0.8rem;}
.report-html h2{font-size:1.15rem;margin:1.1rem 0 0.5rem;border-bottom:1px solid #d6d3d1;padding-bottom:0.15rem;}
.report-html strong{color:#1c1917;}
.report-html a{color:#1d4ed8;text-decoration:underline;}
.report-html table{width:100%;border-collapse:collapse;border:1px solid #a8a29e;font-size:0.8rem;margin:0.5rem 0;}
.report-html th,.report-html td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;}
.report-html thead th{background:#f1f5f9;font-weight:700;}
.citation-annex{margin-top:1.2rem;border-top:1px solid #d6d3d1;padding-top:0.5rem;font-size:0.85rem;}
.citation-annex ul{margin:0.3rem 0 0 1.1rem;padding:0;}
h2[data-page-break-before="true"]{break-before:page;page-break-before:always;}
@media print{ @page{size:auto;margin:12mm;} body{padding:0;} .pdf-wrap{max-width:none;} }
`

package preload

// Placeholders substituted by RenderRuntimeModule.
const (
	routesPlaceholder  = "__PRELOAD_ROUTES__"
	optionsPlaceholder = "__PRELOAD_OPTIONS__"
)

// runtimeTemplate is the browser runtime. It waits for the load event plus
// the configured delay, then imports each route component in priority order
// and reports progress in the status indicator.
const runtimeTemplate = `// virtual:preloader (generated)
const routes = __PRELOAD_ROUTES__;
const options = __PRELOAD_OPTIONS__;

const positions = {
  'top-left': 'top:16px;left:16px;',
  'top-right': 'top:16px;right:16px;',
  'bottom-left': 'bottom:16px;left:16px;',
  'bottom-right': 'bottom:16px;right:16px;'
};

function log() {
  if (!options.debug) return;
  var args = Array.prototype.slice.call(arguments);
  args.unshift('[preload]');
  console.log.apply(console, args);
}

class PreloaderStatus extends HTMLElement {
  connectedCallback() {
    this.style.cssText = 'position:fixed;z-index:99999;padding:6px 10px;border-radius:6px;' +
      'background:rgba(0,0,0,0.75);color:#fff;font:12px/1.4 system-ui,sans-serif;' +
      (positions[options.statusPosition] || positions['bottom-right']);
    this.update(0, 0, routes.length);
  }

  update(loaded, failed, total) {
    this.textContent = total === 0 ? '' : 'Preloaded ' + loaded + '/' + total + (failed ? ' (' + failed + ' failed)' : '');
    if (loaded + failed === total) {
      var el = this;
      setTimeout(function () { el.style.display = 'none'; }, 3000);
    }
  }
}

if (!customElements.get('preloader-status')) {
  customElements.define('preloader-status', PreloaderStatus);
}

function statusElement() {
  if (!options.showStatus) return null;
  var el = document.querySelector('preloader-status');
  if (!el) {
    el = document.createElement('preloader-status');
    document.body.appendChild(el);
  }
  return el;
}

async function preloadAll() {
  var queue = routes.slice().sort(function (a, b) { return a.priority - b.priority; });
  var status = statusElement();
  var loaded = 0;
  var failed = 0;

  for (var i = 0; i < queue.length; i++) {
    var route = queue[i];
    var target = route.module;
    if (!target) {
      failed++;
      log('skipped', route.path, 'no component module', route.component);
    } else {
      try {
        await import(/* @vite-ignore */ target);
        loaded++;
        log('loaded', route.path, '(' + route.reason + ', priority ' + route.priority + ')');
      } catch (err) {
        failed++;
        log('failed', route.path, err);
      }
    }
    if (status) status.update(loaded, failed, queue.length);
  }
}

function schedule() {
  setTimeout(preloadAll, options.delay);
}

if (document.readyState === 'complete') {
  schedule();
} else {
  window.addEventListener('load', schedule, { once: true });
}

export { routes, options };
`
